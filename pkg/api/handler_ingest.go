package api

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/nancy-knowledge/nancy/pkg/ingest"
	"github.com/nancy-knowledge/nancy/pkg/packet"
)

// ingestKnowledgePacketHandler handles POST /ingest/knowledge-packet.
// Status codes: 200 on ingested/skipped_duplicate/partial, 400 on
// validation error, 500 on failed.
func (s *Server) ingestKnowledgePacketHandler(c *echo.Context) error {
	if !s.modeGate.AcceptsKnowledgePackets() {
		return echo.NewHTTPError(http.StatusConflict, "current mode does not accept knowledge packets")
	}

	var pkt packet.Packet
	if err := c.Bind(&pkt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid knowledge packet: "+err.Error())
	}

	if s.metrics != nil {
		s.metrics.RecordPacketReceived()
	}

	start := time.Now()
	result, err := s.ingestRouter.Ingest(c.Request().Context(), &pkt)
	if s.metrics != nil {
		outcome := string(result.Outcome)
		if err != nil && outcome == "" {
			outcome = string(ingest.OutcomeFailed)
		}
		s.metrics.RecordIngestOutcome(outcome, time.Since(start))
	}
	if err != nil {
		return mapError(err)
	}

	resp := IngestResponse{
		Outcome:  string(result.Outcome),
		PacketID: result.PacketID,
		PerBrain: result.PerBrainStatus,
	}

	if result.Outcome == ingest.OutcomeFailed {
		return c.JSON(http.StatusInternalServerError, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// ingestLegacyHandler handles POST /ingest/legacy: a multipart upload
// converted internally into a single-chunk Knowledge Packet.
func (s *Server) ingestLegacyHandler(c *echo.Context) error {
	if !s.modeGate.AcceptsLegacyUploads() {
		return echo.NewHTTPError(http.StatusConflict, "current mode does not accept legacy uploads")
	}

	upload, err := parseLegacyMultipart(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pkt, err := ingest.PacketFromLegacyUpload(upload)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "convert legacy upload: "+err.Error())
	}

	if s.metrics != nil {
		s.metrics.RecordPacketReceived()
	}

	start := time.Now()
	result, err := s.ingestRouter.Ingest(c.Request().Context(), pkt)
	if s.metrics != nil {
		outcome := string(result.Outcome)
		if err != nil && outcome == "" {
			outcome = string(ingest.OutcomeFailed)
		}
		s.metrics.RecordIngestOutcome(outcome, time.Since(start))
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, IngestResponse{
		Outcome:  string(result.Outcome),
		PacketID: result.PacketID,
		PerBrain: result.PerBrainStatus,
	})
}

// ingestDirectoryHandler handles POST /ingest/directory: a convenience
// wrapper walking a local path and submitting each regular file through
// the same conversion ingestLegacyHandler uses, one Ingest call per file.
func (s *Server) ingestDirectoryHandler(c *echo.Context) error {
	if !s.modeGate.AcceptsLegacyUploads() {
		return echo.NewHTTPError(http.StatusConflict, "current mode does not accept legacy uploads")
	}

	var req IngestDirectoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Directory == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "directory is required")
	}

	var results []IngestResponse
	walkErr := filepath.WalkDir(req.Directory, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			results = append(results, IngestResponse{Outcome: string(ingest.OutcomeFailed), PacketID: path})
			return nil
		}

		pkt, convErr := ingest.PacketFromLegacyUpload(ingest.LegacyUpload{
			Filename: filepath.Base(path),
			Author:   req.Author,
			Text:     string(data),
		})
		if convErr != nil {
			results = append(results, IngestResponse{Outcome: string(ingest.OutcomeFailed), PacketID: path})
			return nil
		}

		if s.metrics != nil {
			s.metrics.RecordPacketReceived()
		}
		start := time.Now()
		result, ingestErr := s.ingestRouter.Ingest(c.Request().Context(), pkt)
		if s.metrics != nil {
			outcome := string(result.Outcome)
			if ingestErr != nil && outcome == "" {
				outcome = string(ingest.OutcomeFailed)
			}
			s.metrics.RecordIngestOutcome(outcome, time.Since(start))
		}
		if ingestErr != nil {
			results = append(results, IngestResponse{Outcome: string(ingest.OutcomeFailed), PacketID: pkt.PacketID})
			return nil
		}
		results = append(results, IngestResponse{Outcome: string(result.Outcome), PacketID: result.PacketID, PerBrain: result.PerBrainStatus})
		return nil
	})
	if walkErr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "walk directory: "+walkErr.Error())
	}

	return c.JSON(http.StatusOK, IngestDirectoryResponse{Results: results})
}

// parseLegacyMultipart extracts the "file", "author", and optional
// metadata fields from a POST /ingest/legacy multipart form.
func parseLegacyMultipart(c *echo.Context) (ingest.LegacyUpload, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ingest.LegacyUpload{}, err
	}
	file, err := fileHeader.Open()
	if err != nil {
		return ingest.LegacyUpload{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ingest.LegacyUpload{}, err
	}

	var tags []string
	if raw := c.FormValue("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	return ingest.LegacyUpload{
		Filename:   fileHeader.Filename,
		Author:     c.FormValue("author"),
		Text:       string(data),
		Department: c.FormValue("department"),
		Project:    c.FormValue("project"),
		Tags:       tags,
	}, nil
}
