package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hupe1980/agentproxy/internal/catalog"
)

const maxBodyBytes = 1 << 20

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts an error-returning handler; any error is answered with its
// mapped status and a {"message": ...} body.
func (s *Server) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, r, err)
		}
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) error {
	jsonResponse(w, http.StatusOK, messageResponse{Message: "Running"})
	return nil
}

type echoRequest struct {
	Message any `json:"message"`
}

type echoResponse struct {
	Echo any `json:"echo"`
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) error {
	var req echoRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	jsonResponse(w, http.StatusOK, echoResponse{Echo: req.Message})
	return nil
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	ChatID string `json:"chatId,omitempty"`
}

type chatResponse struct {
	Result string `json:"result"`
	ChatID string `json:"chatId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) error {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	if req.Prompt == "" {
		return badRequest("prompt is required")
	}

	res, err := s.proxy.Chat(r.Context(), s.catalog.Chat, req.ChatID, req.Prompt)
	if err != nil {
		return err
	}

	jsonResponse(w, http.StatusOK, chatResponse{Result: res.FinalOutput, ChatID: res.ConversationID})
	return nil
}

type pokemonRequest struct {
	Pokemon string `json:"pokemon"`
}

type pokemonResponse struct {
	Result string `json:"result"`
}

func (s *Server) handlePokemon(w http.ResponseWriter, r *http.Request) error {
	var req pokemonRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	if req.Pokemon == "" {
		return badRequest("pokemon is required")
	}

	res, err := s.proxy.Run(r.Context(), s.catalog.Orchestrator, catalog.PokemonPrompt(req.Pokemon))
	if err != nil {
		return err
	}

	jsonResponse(w, http.StatusOK, pokemonResponse{Result: res.FinalOutput})
	return nil
}

type supportRequest struct {
	Message string `json:"message"`
}

type supportResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleSupport(w http.ResponseWriter, r *http.Request) error {
	var req supportRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	if req.Message == "" {
		return badRequest("message is required")
	}

	res, err := s.proxy.Run(r.Context(), s.catalog.Triage, req.Message)
	if err != nil {
		return err
	}

	jsonResponse(w, http.StatusOK, supportResponse{Answer: res.FinalOutput})
	return nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		return &HTTPError{Status: http.StatusBadRequest, Message: "invalid JSON body", Err: err}
	}
	return nil
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)

	if status >= http.StatusInternalServerError {
		s.logger.Error("server.request.error", "method", r.Method, "path", r.URL.Path, "status", status, "error", err.Error())
	} else {
		s.logger.Debug("server.request.rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err.Error())
	}

	jsonResponse(w, status, messageResponse{Message: messageOf(err)})
}
