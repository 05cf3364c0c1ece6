package api

import (
	"encoding/json"
	"io"
	"net/http"

	"text2phenotype.com/postag/pipeline"
)

const defaultTid = "api"

type Request struct {
	Pipeline pipeline.Pipeline
}

// ProcessData tags the text of a JSON encoded pipeline.Request.
func (req *Request) ProcessData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	logger := makeRequestLogger(r)

	if r.Method != http.MethodPost {
		logger.Err(nil).Int("status", http.StatusMethodNotAllowed).Msg("Only 'POST' method is allowed here")
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	msg, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not read request body")
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	var request pipeline.Request
	if err = json.Unmarshal(msg, &request); err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not decode request body")
		http.Error(w, "", http.StatusBadRequest)
		return
	}
	if request.Tid == "" {
		request.Tid = defaultTid
	}

	logger.Info().Str("tid", request.Tid).Str("config", request.Config).Msg("Starting pipeline for request from API")
	resp, ok := <-req.Pipeline(request)
	if !ok {
		logger.Error().Str("tid", request.Tid).Int("status", http.StatusInternalServerError).Msg("Pipeline returned no result")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(resp))
	logger.Info().Int("status", http.StatusOK).Msg("Finished processing request")
}
