package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haivivi/noisemap/pkg/api"
	"github.com/haivivi/noisemap/pkg/errs"
	"github.com/haivivi/noisemap/pkg/storage"
)

func (s *Server) handlePredict(c *gin.Context) {
	const op = "server.predict"
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	fh, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, errs.Wrap(errs.KindInvalidInput, op, "upload too large", err))
			return
		}
		respondError(c, errs.New(errs.KindInvalidInput, op, "no audio file provided"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, errs.Wrap(errs.KindInvalidInput, op, "open upload", err))
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		respondError(c, errs.Wrap(errs.KindInvalidInput, op, "read upload", err))
		return
	}

	loc, err := api.ParseLocation(c.PostForm("latitude"), c.PostForm("longitude"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := s.opts.Predictor.Predict(c.Request.Context(), &api.PredictRequest{
		Audio:    data,
		Filename: fh.Filename,
		Location: loc,
		DeviceID: c.PostForm("device_id"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHeatmap(c *gin.Context) {
	window, err := api.ParseWindow(c.Query("range"))
	if err != nil {
		respondError(c, err)
		return
	}
	points, err := s.opts.Predictor.Heatmap(c.Request.Context(), window, s.opts.HeatmapLimit, s.audioURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

func (s *Server) handleAudio(c *gin.Context) {
	data, key, err := s.opts.Predictor.Audio(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, storage.ContentType(key, data), data)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Predictor.Health())
}

func (s *Server) handleModel(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Predictor.Service.Bundle().Summary())
}
