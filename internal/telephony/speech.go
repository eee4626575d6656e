package telephony

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

const DefaultLanguage = "en-US"

type TextToSpeechRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// SpeechToText uploads one recorded utterance as multipart field "audio" and
// returns the recognized text. An utterance with no recognized speech yields "".
func (c *Client) SpeechToText(ctx context.Context, audio []byte, filename string) (string, error) {
	const op = "speech to text"
	if len(audio) == 0 {
		return "", fmt.Errorf("telephony: %s: empty audio", op)
	}
	if filename == "" {
		filename = "audio.wav"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return "", fmt.Errorf("telephony: %s: build form: %w", op, err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("telephony: %s: build form: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("telephony: %s: build form: %w", op, err)
	}

	var resp struct {
		Text  *string `json:"text"`
		Error string  `json:"error,omitempty"`
	}
	status, err := c.send(ctx, op, http.MethodPost, "/speech-to-text", nil, &buf, mw.FormDataContentType(), &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", rejected(op, status, resp.Error)
	}
	if resp.Text == nil {
		return "", malformed(op, status, "missing text", nil)
	}
	return *resp.Text, nil
}

// TextToSpeech synthesizes text and returns the decoded audio bytes.
func (c *Client) TextToSpeech(ctx context.Context, req TextToSpeechRequest) ([]byte, error) {
	const op = "text to speech"
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("telephony: %s: empty text", op)
	}
	if req.Language == "" {
		req.Language = DefaultLanguage
	}

	var resp struct {
		Audio *string `json:"audio"`
		Error string  `json:"error,omitempty"`
	}
	status, err := c.do(ctx, op, http.MethodPost, "/text-to-speech", nil, req, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, rejected(op, status, resp.Error)
	}
	if resp.Audio == nil {
		return nil, malformed(op, status, "missing audio", nil)
	}
	audio, err := base64.StdEncoding.DecodeString(*resp.Audio)
	if err != nil {
		return nil, malformed(op, status, "audio is not base64", err)
	}
	return audio, nil
}
