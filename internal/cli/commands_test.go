package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../harness/testdata/scenarios"

// executeJSON runs args against db with JSON output and decodes the
// response.
func executeJSON(t *testing.T, db string, args ...string) (CLIResponse, error) {
	t.Helper()
	args = append(args, "--db", db, "--format", "json")
	stdout, _, err := execute(t, args...)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "stdout: %s", stdout)
	return resp, err
}

// data returns the response payload as an object.
func data(t *testing.T, resp CLIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func requireFailure(t *testing.T, resp CLIResponse, err error, exitCode int, errCode string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, exitCode, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, errCode, resp.Error.Code)
}

func TestMerge_DirectoryThenShow(t *testing.T) {
	db := tempDB(t)

	resp, err := executeJSON(t, db, "merge", "directory", "--service-id", sidA, "--phone", phoneP)
	require.NoError(t, err)
	merged := data(t, resp)
	assert.Equal(t, sidA, merged["service_id"])
	assert.Equal(t, phoneP, merged["phone_number"])
	require.NotEmpty(t, merged["unique_id"])

	resp, err = executeJSON(t, db, "recipient", "show", "--phone", phoneP)
	require.NoError(t, err)
	assert.Equal(t, merged, data(t, resp))

	resp, err = executeJSON(t, db, "recipient", "show", "--service-id", sidA)
	require.NoError(t, err)
	assert.Equal(t, merged["unique_id"], data(t, resp)["unique_id"])
}

func TestMerge_Idempotent(t *testing.T) {
	db := tempDB(t)

	first, err := executeJSON(t, db, "merge", "directory", "--service-id", sidA, "--phone", phoneP)
	require.NoError(t, err)
	second, err := executeJSON(t, db, "merge", "sender", "--service-id", sidA, "--phone", phoneP)
	require.NoError(t, err)
	assert.Equal(t, data(t, first), data(t, second))

	resp, err := executeJSON(t, db, "recipient", "list")
	require.NoError(t, err)
	assert.Len(t, resp.Data, 1)
}

func TestMerge_NumberTransfer(t *testing.T) {
	db := tempDB(t)

	_, err := executeJSON(t, db, "merge", "directory", "--service-id", sidA, "--phone", phoneP)
	require.NoError(t, err)
	resp, err := executeJSON(t, db, "merge", "directory", "--service-id", sidB, "--phone", phoneP)
	require.NoError(t, err)
	assert.Equal(t, sidB, data(t, resp)["service_id"])

	resp, err = executeJSON(t, db, "recipient", "show", "--service-id", sidA)
	require.NoError(t, err)
	assert.NotContains(t, data(t, resp), "phone_number")

	resp, err = executeJSON(t, db, "recipient", "show", "--phone", phoneP)
	require.NoError(t, err)
	assert.Equal(t, sidB, data(t, resp)["service_id"])
}

func TestMerge_SenderWithoutPhone(t *testing.T) {
	resp, err := executeJSON(t, tempDB(t), "merge", "sender", "--service-id", sidA)
	require.NoError(t, err)
	assert.Equal(t, sidA, data(t, resp)["service_id"])
	assert.NotContains(t, data(t, resp), "phone_number")
}

func TestMerge_Rejected(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"directory_without_phone", []string{"merge", "directory", "--service-id", sidA}},
		{"unknown_source", []string{"merge", "carrier-pigeon", "--service-id", sidA}},
		{"bad_service_id", []string{"merge", "sender", "--service-id", "not-a-uuid"}},
		{"bad_phone", []string{"merge", "directory", "--service-id", sidA, "--phone", "5550000001"}},
		{"pni_outside_local", []string{"merge", "directory", "--service-id", sidA, "--pni", sidB, "--phone", phoneP}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := tempDB(t)
			resp, err := executeJSON(t, db, tt.args...)
			requireFailure(t, resp, err, ExitCommandError, ErrCodeInvalidArg)

			list, err := executeJSON(t, db, "recipient", "list")
			require.NoError(t, err)
			assert.Empty(t, list.Data)
		})
	}
}

func TestLocal_SetAndShow(t *testing.T) {
	db := tempDB(t)

	resp, err := executeJSON(t, db, "local", "show")
	requireFailure(t, resp, err, ExitFailure, ErrCodeNotFound)

	resp, err = executeJSON(t, db, "local", "set", "--aci", sidACI, "--pni", sidPNI, "--phone", phoneMe)
	require.NoError(t, err)
	want := map[string]interface{}{"aci": sidACI, "pni": sidPNI, "phone_number": phoneMe}
	assert.Equal(t, want, data(t, resp))

	resp, err = executeJSON(t, db, "local", "show")
	require.NoError(t, err)
	assert.Equal(t, want, data(t, resp))

	resp, err = executeJSON(t, db, "recipient", "show", "--phone", phoneMe)
	require.NoError(t, err)
	assert.Equal(t, sidACI, data(t, resp)["service_id"])
}

func TestLocal_PhoneProtectedFromOtherSources(t *testing.T) {
	db := tempDB(t)

	_, err := executeJSON(t, db, "local", "set", "--aci", sidACI, "--phone", phoneMe)
	require.NoError(t, err)

	resp, err := executeJSON(t, db, "merge", "directory", "--service-id", sidB, "--phone", phoneMe)
	require.NoError(t, err)
	assert.Equal(t, sidB, data(t, resp)["service_id"])
	assert.NotContains(t, data(t, resp), "phone_number")

	resp, err = executeJSON(t, db, "recipient", "show", "--phone", phoneMe)
	require.NoError(t, err)
	assert.Equal(t, sidACI, data(t, resp)["service_id"])
}

func TestLocal_SetText(t *testing.T) {
	stdout, _, err := execute(t, "local", "set", "--db", tempDB(t), "--aci", sidACI, "--phone", phoneMe)
	require.NoError(t, err)
	assert.Equal(t, "aci="+sidACI+"\tphone="+phoneMe+"\n", stdout)
}

func TestRecipientShow_Errors(t *testing.T) {
	db := tempDB(t)

	resp, err := executeJSON(t, db, "recipient", "show", "--phone", phoneQ)
	requireFailure(t, resp, err, ExitFailure, ErrCodeNotFound)
	assert.Contains(t, resp.Error.Message, phoneQ)

	resp, err = executeJSON(t, db, "recipient", "show", "--phone", "+1-555-000-0002x")
	requireFailure(t, resp, err, ExitCommandError, ErrCodeInvalidArg)
}

func TestRecipientList_Text(t *testing.T) {
	db := tempDB(t)

	stdout, _, err := execute(t, "recipient", "list", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No recipients.\n", stdout)

	_, _, err = execute(t, "merge", "sender", "--db", db, "--service-id", sidA)
	require.NoError(t, err)

	stdout, _, err = execute(t, "recipient", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "service_id="+sidA+"\tphone=-")
}

func TestSession_Set(t *testing.T) {
	db := tempDB(t)

	resp, err := executeJSON(t, db, "merge", "sender", "--service-id", sidA)
	require.NoError(t, err)
	uid := data(t, resp)["unique_id"].(string)

	resp, err = executeJSON(t, db, "session", "set", "--recipient", uid)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"recipient_unique_id": uid,
		"device_id":           float64(1),
		"active":              true,
	}, data(t, resp))

	resp, err = executeJSON(t, db, "session", "set", "--recipient", uid, "--device", "2", "--inactive")
	require.NoError(t, err)
	assert.Equal(t, float64(2), data(t, resp)["device_id"])
	assert.Equal(t, false, data(t, resp)["active"])
}

func TestSession_UnknownRecipient(t *testing.T) {
	resp, err := executeJSON(t, tempDB(t), "session", "set", "--recipient", "missing")
	requireFailure(t, resp, err, ExitFailure, ErrCodeNotFound)
}

func TestSession_SetText(t *testing.T) {
	db := tempDB(t)

	resp, err := executeJSON(t, db, "merge", "sender", "--service-id", sidA)
	require.NoError(t, err)
	uid := data(t, resp)["unique_id"].(string)

	stdout, _, err := execute(t, "session", "set", "--db", db, "--recipient", uid)
	require.NoError(t, err)
	assert.Equal(t, uid+"\tdevice=1\tactive\n", stdout)
}

func TestSync_PendingAndAck(t *testing.T) {
	db := tempDB(t)

	resp, err := executeJSON(t, db, "sync", "pending")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)

	resp, err = executeJSON(t, db, "merge", "directory", "--service-id", sidA, "--phone", phoneP)
	require.NoError(t, err)
	uid := data(t, resp)["unique_id"].(string)

	resp, err = executeJSON(t, db, "sync", "pending")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{uid}, resp.Data)

	resp, err = executeJSON(t, db, "sync", "ack", uid, "unknown")
	require.NoError(t, err)
	assert.Equal(t, float64(1), data(t, resp)["acked"])

	stdout, _, err := execute(t, "sync", "pending", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No recipients pending sync.\n", stdout)
}

func TestSync_PendingLimit(t *testing.T) {
	db := tempDB(t)

	_, err := executeJSON(t, db, "merge", "sender", "--service-id", sidA)
	require.NoError(t, err)
	_, err = executeJSON(t, db, "merge", "directory", "--service-id", sidB, "--phone", phoneQ)
	require.NoError(t, err)

	resp, err := executeJSON(t, db, "sync", "pending", "--limit", "1")
	require.NoError(t, err)
	assert.Len(t, resp.Data, 1)

	resp, err = executeJSON(t, db, "sync", "pending", "--limit", "-1")
	requireFailure(t, resp, err, ExitCommandError, ErrCodeInvalidArg)
}

func TestScenarioCommand_AllPass(t *testing.T) {
	stdout, _, err := execute(t, "scenario", scenariosDir)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "✓ number_transfer")
	assert.Contains(t, stdout, "✓ All scenarios passed")
}

func TestScenarioCommand_JSON(t *testing.T) {
	stdout, _, err := execute(t, "scenario", scenariosDir, "--format", "json", "--filter", "collision_*")
	require.NoError(t, err, stdout)

	var resp struct {
		Status string            `json:"status"`
		Data   ScenarioRunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
	assert.Zero(t, resp.Data.Failed)
}

func TestScenarioCommand_NoMatches(t *testing.T) {
	stdout, _, err := execute(t, "scenario", scenariosDir, "--filter", "does_not_exist")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", stdout)
}

func TestScenarioCommand_MissingDir(t *testing.T) {
	_, _, err := execute(t, "scenario", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioCommand_UpdateThenCompare(t *testing.T) {
	goldenDir := filepath.Join(t.TempDir(), "golden")

	stdout, _, err := execute(t, "scenario", scenariosDir, "--filter", "orphan", "--golden-dir", goldenDir, "--update")
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "✓ orphan (golden updated)")

	written, err := os.ReadFile(filepath.Join(goldenDir, "orphan.golden"))
	require.NoError(t, err)
	committed, err := os.ReadFile("../harness/testdata/golden/orphan.golden")
	require.NoError(t, err)
	assert.Equal(t, string(committed), string(written))

	stdout, _, err = execute(t, "scenario", scenariosDir, "--filter", "orphan", "--golden-dir", goldenDir)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "✓ orphan\n")
}

func TestScenarioCommand_GoldenMismatch(t *testing.T) {
	goldenDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "idempotent.golden"), []byte("{}"), 0644))

	stdout, _, err := execute(t, "scenario", scenariosDir, "--filter", "idempotent", "--golden-dir", goldenDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ idempotent")
	assert.Contains(t, stdout, "snapshot does not match golden file")
}

func TestMerge_LinkedDevice(t *testing.T) {
	db := tempDB(t)

	resp, err := executeJSON(t, db, "merge", "linked-device", "--service-id", sidA, "--phone", phoneP)
	require.NoError(t, err)
	assert.Equal(t, phoneP, data(t, resp)["phone_number"])

	resp, err = executeJSON(t, db, "merge", "linked-device", "--service-id", sidA, "--phone", phoneQ, "--strict")
	require.NoError(t, err)
	assert.Equal(t, phoneQ, data(t, resp)["phone_number"])

	resp, err = executeJSON(t, db, "recipient", "show", "--phone", phoneP)
	requireFailure(t, resp, err, ExitFailure, ErrCodeNotFound)
}
