// Package astrometry detects constellations in sky photos with the
// astrometry.net plate-solving API.
package astrometry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/skylore-service/internal/domain"
	"github.com/couchcryptid/skylore-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultBaseURL is the public nova.astrometry.net API root.
const DefaultBaseURL = "https://nova.astrometry.net/api/"

// errPollBudget marks a phase that ran out of poll attempts before the
// service produced an answer.
var errPollBudget = errors.New("poll attempts exhausted")

// constellationMarker matches on the original string so that match offsets
// stay valid for slicing.
var constellationMarker = regexp.MustCompile(`(?i)constellation`)

// Options configures a Client.
type Options struct {
	APIKey             string
	BaseURL            string
	PollInterval       time.Duration
	MaxSubmissionPolls int
	MaxJobPolls        int
	// Timeout bounds a whole detection, login through results.
	Timeout time.Duration
}

// Client implements domain.ConstellationDetector against astrometry.net.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	interval   time.Duration
	maxSubPoll int
	maxJobPoll int
	timeout    time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an astrometry.net client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		clock:      clockwork.NewRealClock(),
		interval:   opts.PollInterval,
		maxSubPoll: max(opts.MaxSubmissionPolls, 1),
		maxJobPoll: max(opts.MaxJobPolls, 1),
		timeout:    opts.Timeout,
		metrics:    metrics,
		logger:     logger,
	}
}

// Detect uploads the photo, waits for the solve, and extracts constellation
// names from the objects in the field. It never returns an error: failures
// and timeouts are reported through the Detection status.
func (c *Client) Detect(ctx context.Context, photo domain.Photo) domain.Detection {
	if c.apiKey == "" {
		return domain.DetectionFailure(errors.New("astrometry API key not configured"))
	}
	if len(photo.Data) == 0 {
		return domain.DetectionFailure(errors.New("empty image"))
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := c.clock.Now()
	names, err := c.solve(ctx, photo)
	elapsed := c.clock.Since(start)
	c.metrics.DetectionDuration.Observe(elapsed.Seconds())

	d := domain.Detected(names)
	if err != nil {
		d = classify(err)
		c.logger.Warn("constellation detection unsuccessful",
			"status", d.Status.String(),
			"error", err,
			"elapsed", elapsed,
		)
	} else {
		c.logger.Info("constellations detected", "names", names, "elapsed", elapsed)
	}
	c.metrics.DetectionRequests.WithLabelValues(d.Status.String()).Inc()
	return d
}

// DetectFile runs Detect on the image at path.
func (c *Client) DetectFile(ctx context.Context, path string) domain.Detection {
	return detectFile(ctx, c, path)
}

func (c *Client) solve(ctx context.Context, photo domain.Photo) ([]string, error) {
	session, err := c.login(ctx)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	subID, err := c.upload(ctx, session, photo)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	jobID, err := c.pollSubmission(ctx, subID)
	if err != nil {
		return nil, fmt.Errorf("submission %d: %w", subID, err)
	}
	if err := c.pollJob(ctx, jobID); err != nil {
		return nil, fmt.Errorf("job %d: %w", jobID, err)
	}
	names, err := c.objectsInField(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("job %d results: %w", jobID, err)
	}
	return names, nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{"apikey": c.apiKey})
	if err != nil {
		return "", err
	}
	form := url.Values{"request-json": {string(payload)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp loginResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.Status != "success" || resp.Session == "" {
		return "", fmt.Errorf("rejected: %s", resp.message())
	}
	return resp.Session, nil
}

func (c *Client) upload(ctx context.Context, session string, photo domain.Photo) (int64, error) {
	payload, err := json.Marshal(map[string]string{
		"session":             session,
		"public":              "y",
		"allow_modifications": "n",
	})
	if err != nil {
		return 0, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("request-json", string(payload)); err != nil {
		return 0, err
	}
	filename := photo.Filename
	if filename == "" {
		filename = "image.jpg"
	}
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return 0, err
	}
	if _, err := part.Write(photo.Data); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"upload", &body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return 0, err
	}
	if resp.Status != "success" || resp.SubID == 0 {
		return 0, fmt.Errorf("rejected: %s", resp.message())
	}
	return resp.SubID, nil
}

// pollSubmission waits for the submission to be assigned a job.
func (c *Client) pollSubmission(ctx context.Context, subID int64) (int64, error) {
	u := fmt.Sprintf("%ssubmissions/%d", c.baseURL, subID)
	for attempt := 1; attempt <= c.maxSubPoll; attempt++ {
		if err := c.wait(ctx); err != nil {
			return 0, err
		}
		var resp submissionResponse
		if err := c.get(ctx, u, &resp); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			c.logger.Debug("submission poll failed", "submission", subID, "attempt", attempt, "error", err)
			continue
		}
		for _, job := range resp.Jobs {
			if job != nil {
				return *job, nil
			}
		}
		c.logger.Debug("submission has no job yet", "submission", subID, "attempt", attempt)
	}
	return 0, fmt.Errorf("no job after %d polls: %w", c.maxSubPoll, errPollBudget)
}

// pollJob waits for the job to reach a terminal status.
func (c *Client) pollJob(ctx context.Context, jobID int64) error {
	u := fmt.Sprintf("%sjobs/%d", c.baseURL, jobID)
	for attempt := 1; attempt <= c.maxJobPoll; attempt++ {
		var resp jobResponse
		err := c.get(ctx, u, &resp)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			c.logger.Debug("job poll failed", "job", jobID, "attempt", attempt, "error", err)
		case resp.Status == "success":
			return nil
		case resp.Status == "failure" || resp.Status == "failed" || resp.Status == "error":
			return fmt.Errorf("solve %s", resp.Status)
		default:
			c.logger.Debug("job pending", "job", jobID, "status", resp.Status, "attempt", attempt)
		}
		if attempt < c.maxJobPoll {
			if err := c.wait(ctx); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("unsolved after %d polls: %w", c.maxJobPoll, errPollBudget)
}

func (c *Client) objectsInField(ctx context.Context, jobID int64) ([]string, error) {
	var resp objectsResponse
	if err := c.get(ctx, fmt.Sprintf("%sjobs/%d/objects_in_field/", c.baseURL, jobID), &resp); err != nil {
		return nil, err
	}
	return ConstellationNames(resp.Objects), nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.interval <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(c.interval):
		return nil
	}
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("astrometry API error: status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ConstellationNames extracts constellation names from objects_in_field
// entries such as "Part of the constellation Orion (Ori)". Names keep their
// first-seen order and appear once.
func ConstellationNames(objects []string) []string {
	names := []string{}
	seen := make(map[string]bool)
	for _, obj := range objects {
		loc := constellationMarker.FindStringIndex(obj)
		if loc == nil {
			continue
		}
		name := obj[loc[1]:]
		if j := strings.Index(name, "("); j >= 0 {
			name = name[:j]
		}
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// classify maps a solve error to a detection outcome.
func classify(err error) domain.Detection {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errPollBudget) {
		return domain.DetectionTimeout(err)
	}
	return domain.DetectionFailure(err)
}

func detectFile(ctx context.Context, d domain.ConstellationDetector, path string) domain.Detection {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.DetectionFailure(fmt.Errorf("read image: %w", err))
	}
	return d.Detect(ctx, domain.Photo{Filename: filepath.Base(path), Data: data})
}

// astrometry.net API response types.

type apiStatus struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"errormessage"`
}

func (s apiStatus) message() string {
	if s.ErrorMessage != "" {
		return s.ErrorMessage
	}
	if s.Status != "" {
		return "status " + s.Status
	}
	return "unknown error"
}

type loginResponse struct {
	apiStatus
	Session string `json:"session"`
}

type uploadResponse struct {
	apiStatus
	SubID int64 `json:"subid"`
}

type submissionResponse struct {
	Jobs []*int64 `json:"jobs"`
}

type jobResponse struct {
	Status string `json:"status"`
}

type objectsResponse struct {
	Objects []string `json:"objects_in_field"`
}
