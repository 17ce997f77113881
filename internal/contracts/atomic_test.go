package contracts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cogsensor/internal/cogerr"

	"github.com/stretchr/testify/require"
)

func validPayload() DailyPayload {
	return DailyPayload{
		Mode: "BUILD", BuildAllowed: true, PrimaryAction: "Ship one new outcome today",
		Risk: "LOW", ClosureRatio: 1.0, GeneratedAt: time.Unix(1, 0),
	}
}

func TestAtomicWriteJSON_WritesIndentedUTF8WithTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_payload.json")
	require.NoError(t, AtomicWriteJSON(path, validPayload()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "  \"mode\": \"BUILD\"")
	require.True(t, data[len(data)-1] == '\n')
}

func TestAtomicWriteJSON_InvalidArtifactLeavesExistingFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_payload.json")
	require.NoError(t, AtomicWriteJSON(path, validPayload()))
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	bad := validPayload()
	bad.Mode = "INVALID"
	err = AtomicWriteJSON(path, bad)
	require.Error(t, err)
	require.True(t, cogerr.Is(err, cogerr.KindContractViolation))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, original, after)
}

func TestAtomicWriteJSON_NoTempFileLeftBehindOnSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daily_payload.json")
	require.NoError(t, AtomicWriteJSON(path, validPayload()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "daily_payload.json", entries[0].Name())
}

func TestAtomicWriteText_AppendsTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_directive.txt")
	require.NoError(t, AtomicWriteText(path, "MODE=BUILD\nACTION=x\nRISK=LOW"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "MODE=BUILD\nACTION=x\nRISK=LOW\n", string(data))
}

func TestAtomicWriteText_OverwritesExistingAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_directive.txt")
	require.NoError(t, AtomicWriteText(path, "MODE=CLOSURE\nACTION=a\nRISK=HIGH\n"))
	require.NoError(t, AtomicWriteText(path, "MODE=BUILD\nACTION=b\nRISK=LOW\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "MODE=BUILD\nACTION=b\nRISK=LOW\n", string(data))
}
