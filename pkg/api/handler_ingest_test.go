package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nancy-knowledge/nancy/pkg/brains/analytical"
	"github.com/nancy-knowledge/nancy/pkg/brains/graph"
	"github.com/nancy-knowledge/nancy/pkg/brains/vector"
	"github.com/nancy-knowledge/nancy/pkg/config"
	"github.com/nancy-knowledge/nancy/pkg/ingest"
	"github.com/nancy-knowledge/nancy/pkg/mode"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

func newIngestTestServer(t *testing.T, initial config.Mode) *Server {
	t.Helper()
	router := ingest.NewRouter(ingest.Brains{
		Vector:     vector.NewMemoryStore(nil),
		Analytical: analytical.NewMemoryStore(),
		Graph:      graph.NewMemoryStore(),
	}, ingest.NewMemoryStore(), nil, nil)

	return &Server{
		ingestRouter: router,
		modeGate:     mode.NewGate(initial, zeroDrainer{}),
	}
}

func mustTestPacket(t *testing.T) *packet.Packet {
	t.Helper()
	content := packet.Content{
		VectorData: &packet.VectorData{Chunks: []packet.Chunk{{ChunkID: "c1", Text: "hello world"}}},
	}
	hash, err := packet.ComputeHash(content)
	require.NoError(t, err)
	return &packet.Packet{
		PacketVersion: "1.0",
		PacketID:      hash,
		Timestamp:     time.Now(),
		Source: packet.Source{
			MCPServerName: "test-server",
			ContentType:   packet.ContentTypeDocument,
		},
		Metadata: packet.Metadata{Title: "test packet"},
		Content:  content,
	}
}

func TestIngestKnowledgePacketHandlerIngests(t *testing.T) {
	s := newIngestTestServer(t, config.ModeHybrid)
	pkt := mustTestPacket(t)
	body, err := json.Marshal(pkt)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/ingest/knowledge-packet", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.ingestKnowledgePacketHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ingested", resp.Outcome)
	assert.Equal(t, pkt.PacketID, resp.PacketID)
}

func TestIngestKnowledgePacketHandlerRejectsInLegacyMode(t *testing.T) {
	s := newIngestTestServer(t, config.ModeLegacy)
	pkt := mustTestPacket(t)
	body, err := json.Marshal(pkt)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/ingest/knowledge-packet", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err = s.ingestKnowledgePacketHandler(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, httpErr.Code)
}

func TestIngestLegacyHandlerConvertsUpload(t *testing.T) {
	s := newIngestTestServer(t, config.ModeLegacy)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("author", "ada"))
	fw, err := w.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("legacy document contents"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/ingest/legacy", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, s.ingestLegacyHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ingested", resp.Outcome)
	assert.NotEmpty(t, resp.PacketID)
}

func TestIngestLegacyHandlerRejectsInMCPMode(t *testing.T) {
	s := newIngestTestServer(t, config.ModeMCP)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("contents"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/ingest/legacy", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err = s.ingestLegacyHandler(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, httpErr.Code)
}
