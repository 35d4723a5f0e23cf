// Package ai answers renter questions about a listing with Gemini.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/reqctx"
	"google.golang.org/genai"
)

const (
	DefaultModel      = "gemini-2.5-flash"
	maxQuestionLen    = 500
	maxAnswerLen      = 1200
	fallbackAnswer    = "Sorry, I couldn't generate an answer. Please contact the lister through chat."
	defaultAskTimeout = 20 * time.Second
)

var ErrInvalidQuestion = errors.New("question must be 1-500 characters")

type Config struct {
	APIKey string
	Model  string
	// BaseURL and HTTPClient override the Gemini endpoint; both are optional.
	BaseURL    string
	HTTPClient *http.Client
}

type ListingAssistant struct {
	client *genai.Client
	model  string
}

func NewListingAssistant(ctx context.Context, cfg Config) (*ListingAssistant, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("ai: client init: %w", err)
	}
	return &ListingAssistant{client: client, model: model}, nil
}

// Ask answers question about listing.
func (a *ListingAssistant) Ask(ctx context.Context, listing model.Listing, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" || utf8.RuneCountInString(question) > maxQuestionLen {
		return "", ErrInvalidQuestion
	}
	rid := reqctx.RID(ctx)
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultAskTimeout)
		defer cancel()
	}

	parts := []*genai.Part{
		genai.NewPartFromText(BuildListingPrompt(listing)),
		genai.NewPartFromText("Question: " + question),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	temp := float32(0.5)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   512,
	}

	start := time.Now()
	log.Printf("[ask] rid=%s listing=%d stage=gemini_start model=%s", rid, listing.ID, a.model)
	res, err := a.client.Models.GenerateContent(ctx, a.model, contents, config)
	if err != nil {
		log.Printf("[ask] rid=%s listing=%d stage=gemini_fail model=%s err=%v", rid, listing.ID, a.model, err)
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	answer := CleanAnswer(res.Text(), maxAnswerLen)
	log.Printf("[ask] rid=%s listing=%d stage=gemini_done len=%d genMs=%d", rid, listing.ID, len(answer), time.Since(start).Milliseconds())
	if answer == "" {
		return fallbackAnswer, nil
	}
	return answer, nil
}
