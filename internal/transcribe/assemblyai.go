package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"subtitle-pipeline/internal/blob"
)

const assemblyAIBaseURL = "https://api.assemblyai.com/v2"

// AssemblyAIClient is the real provider variant of spec.md §4.4: it
// mints a presigned read URL for the audio blob, submits it to the
// speech service, polls until terminal, and maps the response into
// Segments.
type AssemblyAIClient struct {
	httpClient   *http.Client
	blobStore    blob.Store
	apiKey       string
	baseURL      string
	presignTTL   time.Duration
	pollEvery    time.Duration
	maxPollTotal time.Duration // 0 means unbounded, per spec.md §9
}

// NewAssemblyAIClient constructs a real transcription client.
func NewAssemblyAIClient(httpClient *http.Client, blobStore blob.Store, apiKey string, presignTTL, pollEvery, maxPollTotal time.Duration) *AssemblyAIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AssemblyAIClient{
		httpClient:   httpClient,
		blobStore:    blobStore,
		apiKey:       apiKey,
		baseURL:      assemblyAIBaseURL,
		presignTTL:   presignTTL,
		pollEvery:    pollEvery,
		maxPollTotal: maxPollTotal,
	}
}

type submitRequest struct {
	AudioURL string `json:"audio_url"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type utterance struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type pollResponse struct {
	Status        string      `json:"status"`
	Error         string      `json:"error"`
	AudioDuration int         `json:"audio_duration"`
	Utterances    []utterance `json:"utterances"`
	Text          string      `json:"text"`
}

// Transcribe implements spec.md §4.4 steps (a)-(d).
func (c *AssemblyAIClient) Transcribe(ctx context.Context, audioBlobKey string) ([]Segment, error) {
	audioURL, err := c.blobStore.PresignGet(ctx, audioBlobKey, c.presignTTL)
	if err != nil {
		return nil, fmt.Errorf("transcribe: presign %s: %w", audioBlobKey, err)
	}

	jobID, err := c.submit(ctx, audioURL)
	if err != nil {
		return nil, err
	}

	return c.pollUntilTerminal(ctx, jobID)
}

func (c *AssemblyAIClient) submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(submitRequest{AudioURL: audioURL})
	if err != nil {
		return "", fmt.Errorf("transcribe: marshal submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("transcribe: build submit request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcribe: submit returned status %d", resp.StatusCode)
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("transcribe: decode submit response: %w", err)
	}
	return sr.ID, nil
}

func (c *AssemblyAIClient) pollUntilTerminal(ctx context.Context, jobID string) ([]Segment, error) {
	var elapsed time.Duration
	for {
		pr, err := c.poll(ctx, jobID)
		if err != nil {
			// A failed poll request (transport error, non-2xx status,
			// undecodable body) is returned as is; this loop does not
			// retry it. Any retrying is up to the configured
			// http.Client.
			return nil, err
		}

		switch pr.Status {
		case "completed":
			return mapUtterances(pr), nil
		case "error":
			return nil, fmt.Errorf("transcribe: provider job %s failed: %s", jobID, pr.Error)
		}

		if c.maxPollTotal > 0 {
			elapsed += c.pollEvery
			if elapsed >= c.maxPollTotal {
				return nil, fmt.Errorf("transcribe: provider job %s did not terminate within %s", jobID, c.maxPollTotal)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollEvery):
		}
	}
}

func (c *AssemblyAIClient) poll(ctx context.Context, jobID string) (*pollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcript/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("transcribe: build poll request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcribe: poll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transcribe: poll returned status %d", resp.StatusCode)
	}

	var pr pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("transcribe: decode poll response: %w", err)
	}
	return &pr, nil
}

func mapUtterances(pr *pollResponse) []Segment {
	if len(pr.Utterances) > 0 {
		segments := make([]Segment, len(pr.Utterances))
		for i, u := range pr.Utterances {
			segments[i] = Segment{Text: u.Text, StartMS: u.Start, EndMS: u.End}
		}
		return segments
	}
	return []Segment{{Text: pr.Text, StartMS: 0, EndMS: pr.AudioDuration}}
}
