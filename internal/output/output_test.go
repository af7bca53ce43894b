package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct{}

func (fakeJob) Name() string          { return "movie.mkv" }
func (fakeJob) Engine() string        { return "GoFile API" }
func (fakeJob) ProcessedBytes() int64 { return 512 }
func (fakeJob) Size() int64           { return 2048 }
func (fakeJob) Speed() float64        { return 256 }

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer

	h, err := NewHandler("JSON", &buf)
	require.NoError(t, err)
	assert.IsType(t, &JSONHandler{}, h)

	h, err = NewHandler("text", &buf)
	require.NoError(t, err)
	assert.IsType(t, &TextHandler{}, h)

	_, err = NewHandler("xml", &buf)
	assert.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	p := Snapshot(fakeJob{})
	assert.Equal(t, "movie.mkv", p.Name)
	assert.Equal(t, "GoFile API", p.Engine)
	assert.Equal(t, int64(512), p.Bytes)
	assert.Equal(t, int64(2048), p.Total)
	assert.InDelta(t, 25.0, p.Percentage, 0.001)
	assert.Equal(t, 256.0, p.Speed)
}

func TestJobListener_Text(t *testing.T) {
	var buf bytes.Buffer
	l := NewJobListener(NewTextHandler(&buf), "movie.mkv", "/data/movie.mkv")
	assert.Nil(t, l.Result())

	l.OnUploadComplete(map[string]string{"GoFile": "https://gofile.io/d/abc"}, 2048, 1, 0, "application/octet-stream", "movie.mkv")

	assert.Equal(t, "SUCCESS movie.mkv (2.0 KiB, 1 files, 0 folders) via GoFile -> https://gofile.io/d/abc\n", buf.String())
	require.NotNil(t, l.Result())
	assert.Equal(t, "/data/movie.mkv", l.Result().Path)

	buf.Reset()
	l.OnUploadError("Your upload has been stopped!")
	assert.Equal(t, "ERROR movie.mkv: Your upload has been stopped!\n", buf.String())
	assert.Equal(t, "Your upload has been stopped!", l.Result().Error)
}

func TestTextHandler_Progress(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf)

	require.NoError(t, h.HandleProgress(Snapshot(fakeJob{})))
	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[==========      "), line)
	assert.Contains(t, line, "movie.mkv 25.0% (512 B/2.0 KiB) 256 B/s via GoFile API")

	buf.Reset()
	require.NoError(t, h.HandleProgress(Progress{Name: "x", Percentage: 150}))
	assert.Contains(t, buf.String(), "["+strings.Repeat("=", 40)+"]")
}

func TestJSONHandler_Lines(t *testing.T) {
	var buf bytes.Buffer
	h := NewJSONHandler(&buf)
	l := NewJobListener(h, "movie.mkv", "/data/movie.mkv")

	require.NoError(t, h.HandleProgress(Snapshot(fakeJob{})))
	l.OnUploadComplete(map[string]string{"GoFile": "https://x/y"}, 10, 1, 0, "application/octet-stream", "movie.mkv")
	require.NoError(t, h.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var progress map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &progress))
	assert.Equal(t, "progress", progress["type"])
	assert.Equal(t, "movie.mkv", progress["name"])
	assert.EqualValues(t, 512, progress["bytes"])

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &result))
	assert.Equal(t, "result", result["type"])
	assert.Equal(t, "/data/movie.mkv", result["path"])
	assert.Equal(t, map[string]interface{}{"GoFile": "https://x/y"}, result["links"])
	assert.NotContains(t, result, "error")
}
