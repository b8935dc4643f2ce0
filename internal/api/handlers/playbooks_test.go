package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldscout/internal/core"
	"fieldscout/internal/engine"
	"fieldscout/internal/export"
	"fieldscout/internal/patch"
	"fieldscout/internal/playbook"
	"fieldscout/internal/recommendation"
	"fieldscout/internal/types"
	"fieldscout/internal/weather"
)

type patchResultEnvelope struct {
	Data types.PatchApplyResult `json:"data"`
}

type playbookEnvelope struct {
	Data PlaybookDetail `json:"data"`
}

type playbookRig struct {
	router   http.Handler
	pbStore  *playbook.MemoryStore
	recStore *recommendation.MemoryStore
	patchLog *patch.MemoryLog
}

// newPlaybookRig wires a playbook handler against real in-memory stores with
// the demo playbook seeded and one recommendation record retained as the
// recompute context.
func newPlaybookRig(t *testing.T, withRecommendation bool) *playbookRig {
	t.Helper()
	logger := testLogger()
	clock := fixedClock{now: testGeneratedAt}

	pbStore := playbook.NewMemoryStore()
	require.NoError(t, pbStore.Seed(context.Background(), playbook.Demo()))

	recStore := recommendation.NewMemoryStore()
	if withRecommendation {
		builder := engine.NewBuilder(clock, logger)
		rec, err := builder.GenerateRecommendation(
			playbook.DemoObservation(), playbook.Demo(), weather.DemoFeatures(),
			"rec_seed", testReferenceTime)
		require.NoError(t, err)
		require.NoError(t, recStore.Put(context.Background(), &recommendation.Record{
			Recommendation: rec,
			Observation:    playbook.DemoObservation(),
			Weather:        weather.DemoFeatures(),
			ReferenceTime:  testReferenceTime,
		}))
	}

	log := patch.NewMemoryLog()
	orch := patch.NewOrchestrator(engine.NewBuilder(clock, logger), logger)
	h := NewPlaybookHandler(pbStore, recStore, log, orch, core.NewValidator(logger), logger, clock)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) { h.RegisterRoutes(r) })
	return &playbookRig{router: r, pbStore: pbStore, recStore: recStore, patchLog: log}
}

const demoPatchBody = `{
	"baseVersion": 3,
	"reason": "calibrating wind ceiling after drift event",
	"operations": [
		{"op": "replace", "path": "/rules/rule_pm_moderate/constraints/maxWindKph", "value": 10}
	]
}`

func submitPatch(rig *playbookRig, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/v1/playbooks/"+playbook.DemoPlaybookID+"/patches", strings.NewReader(body)))
	return w
}

func TestGetPlaybook(t *testing.T) {
	rig := newPlaybookRig(t, false)

	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/playbooks/"+playbook.DemoPlaybookID, nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp playbookEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, playbook.DemoPlaybookID, resp.Data.PlaybookID)
	assert.Equal(t, 3, resp.Data.Version)
	assert.Equal(t, []int{3}, resp.Data.Versions)
}

func TestGetPlaybook_Unknown(t *testing.T) {
	rig := newPlaybookRig(t, false)

	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/playbooks/pbk_missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeNotFoundPlaybook))
}

func TestGetPlaybookVersion(t *testing.T) {
	rig := newPlaybookRig(t, false)
	base := "/v1/playbooks/" + playbook.DemoPlaybookID + "/versions/"

	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, base+"3", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	rig.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, base+"99", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeNotFoundPlaybookVersion))

	w = httptest.NewRecorder()
	rig.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, base+"abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListPlaybookVersions(t *testing.T) {
	rig := newPlaybookRig(t, false)

	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/v1/playbooks/"+playbook.DemoPlaybookID+"/versions", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[3]}`, w.Body.String())
}

func TestSubmitPatch_AppliesAndRecomputes(t *testing.T) {
	rig := newPlaybookRig(t, true)

	w := submitPatch(rig, demoPatchBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp patchResultEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	result := resp.Data

	assert.Equal(t, types.PatchApplied, result.Status)
	assert.Equal(t, 3, result.OldVersion)
	assert.Equal(t, 4, result.NewVersion)
	assert.Empty(t, result.ValidationErrors)
	require.NotNil(t, result.RecomputedRecommendationID)

	// The new version is active and carries the edit.
	active, err := rig.pbStore.GetActive(context.Background(), playbook.DemoPlaybookID)
	require.NoError(t, err)
	assert.Equal(t, 4, active.Version)
	assert.Equal(t, 10.0, active.Rules["rule_pm_moderate"].Constraints.MaxWindKph)

	// The recomputed recommendation was stored under the causal link and
	// reflects the patched constraint for the same reference time.
	record, err := rig.recStore.Get(context.Background(), *result.RecomputedRecommendationID)
	require.NoError(t, err)
	assert.Equal(t, 4, record.Recommendation.PlaybookVersion)
	assert.Contains(t, record.Recommendation.TimingWindow.Drivers, "maxWindKph=10")
	assert.Contains(t, record.Recommendation.TimingWindow.StartAt, "21:00:00")
	assert.Contains(t, record.Recommendation.TimingWindow.EndAt, "23:30:00")

	// The submission landed in the audit log.
	history, err := rig.patchLog.ListByPlaybook(context.Background(), playbook.DemoPlaybookID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.PatchApplied, history[0].Result.Status)
}

func TestSubmitPatch_VersionMismatch(t *testing.T) {
	rig := newPlaybookRig(t, true)

	body := strings.Replace(demoPatchBody, `"baseVersion": 3`, `"baseVersion": 2`, 1)
	w := submitPatch(rig, body)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeVersionMismatch))
	assert.Contains(t, w.Body.String(), "expected 3, got 2")

	// Playbook untouched; rejection still audited.
	active, err := rig.pbStore.GetActive(context.Background(), playbook.DemoPlaybookID)
	require.NoError(t, err)
	assert.Equal(t, 3, active.Version)

	history, err := rig.patchLog.ListByPlaybook(context.Background(), playbook.DemoPlaybookID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.PatchRejected, history[0].Result.Status)
}

func TestSubmitPatch_PathNotAllowed(t *testing.T) {
	rig := newPlaybookRig(t, true)

	body := `{
		"baseVersion": 3,
		"operations": [
			{"op": "replace", "path": "/playbookId", "value": "pbk_evil"}
		]
	}`
	w := submitPatch(rig, body)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodePathNotAllowed))
	assert.Contains(t, w.Body.String(), "/playbookId")
}

func TestSubmitPatch_MalformedOperation(t *testing.T) {
	rig := newPlaybookRig(t, true)

	body := `{
		"baseVersion": 3,
		"operations": [
			{"op": "delete", "path": "/rules/rule_pm_moderate/constraints/maxWindKph"}
		]
	}`
	w := submitPatch(rig, body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(types.ErrCodeMalformedPatch))
}

func TestSubmitPatch_NoOperations(t *testing.T) {
	rig := newPlaybookRig(t, true)

	w := submitPatch(rig, `{"baseVersion": 3, "operations": []}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "operations")
}

func TestSubmitPatch_NoRecommendationContext(t *testing.T) {
	rig := newPlaybookRig(t, false)

	w := submitPatch(rig, demoPatchBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp patchResultEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.PatchApplied, resp.Data.Status)
	assert.Equal(t, 4, resp.Data.NewVersion)
	assert.Nil(t, resp.Data.RecomputedRecommendationID)
}

func TestSubmitPatch_UnknownPlaybook(t *testing.T) {
	rig := newPlaybookRig(t, false)

	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost,
		"/v1/playbooks/pbk_missing/patches", strings.NewReader(demoPatchBody)))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportBundle(t *testing.T) {
	rig := newPlaybookRig(t, true)

	// One applied patch so the bundle carries history and v4.
	require.Equal(t, http.StatusOK, submitPatch(rig, demoPatchBody).Code)

	w := httptest.NewRecorder()
	rig.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/v1/playbooks/"+playbook.DemoPlaybookID+"/export", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "fieldscout_"+playbook.DemoPlaybookID)

	bundle, err := export.Read(w.Body)
	require.NoError(t, err)
	assert.Equal(t, playbook.DemoPlaybookID, bundle.Playbook.PlaybookID)
	assert.Equal(t, 4, bundle.Playbook.Version)
	assert.Equal(t, []int{3, 4}, bundle.Versions)
	require.NotNil(t, bundle.Recommendation)
	require.Len(t, bundle.PatchHistory, 1)
	assert.Equal(t, types.PatchApplied, bundle.PatchHistory[0].Result.Status)
}
