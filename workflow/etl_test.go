package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warepulse/stockwatch_backend/marketsync"
	"github.com/warepulse/stockwatch_backend/models"
)

// fakeClient replays a scripted sequence of status responses. DB-free: only
// the poll loop is exercised here.
type fakeClient struct {
	statuses []statusStep
	calls    int
}

type statusStep struct {
	resp *marketsync.ReportStatusResponse
	err  error
}

func (f *fakeClient) CreateReport(ctx context.Context, params marketsync.ReportParams) (string, error) {
	return "report-1", nil
}

func (f *fakeClient) GetReportStatus(ctx context.Context, code string) (*marketsync.ReportStatusResponse, error) {
	step := f.statuses[len(f.statuses)-1]
	if f.calls < len(f.statuses) {
		step = f.statuses[f.calls]
	}
	f.calls++
	return step.resp, step.err
}

func (f *fakeClient) Download(ctx context.Context, url string) ([]byte, error) {
	return nil, errors.New("not used")
}

func fastConfig() ETLConfig {
	return ETLConfig{
		PollTimeout:        200 * time.Millisecond,
		PollInterval:       time.Millisecond,
		MaxTransientErrors: 3,
		Source:             "test",
	}
}

func TestPollUntilTerminalSuccess(t *testing.T) {
	client := &fakeClient{statuses: []statusStep{
		{resp: &marketsync.ReportStatusResponse{Status: marketsync.RemoteStatusPending}},
		{resp: &marketsync.ReportStatusResponse{Status: marketsync.RemoteStatusProcessing}},
		{resp: &marketsync.ReportStatusResponse{Status: marketsync.RemoteStatusSuccess, DownloadURL: "https://dl/report-1"}},
	}}

	out := pollUntilTerminal(context.Background(), client, "report-1", fastConfig())
	if out.status != models.ReportStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (%s)", out.status, out.errMessage)
	}
	if out.downloadURL != "https://dl/report-1" {
		t.Fatalf("expected download url, got %q", out.downloadURL)
	}
	if !out.sawProgress {
		t.Fatal("expected sawProgress once the remote moved past PENDING")
	}
}

func TestPollUntilTerminalRemoteError(t *testing.T) {
	client := &fakeClient{statuses: []statusStep{
		{resp: &marketsync.ReportStatusResponse{Status: marketsync.RemoteStatusProcessing}},
		{resp: &marketsync.ReportStatusResponse{Status: marketsync.RemoteStatusError, Error: "bad filter"}},
	}}

	out := pollUntilTerminal(context.Background(), client, "report-1", fastConfig())
	if out.status != models.ReportStatusError {
		t.Fatalf("expected ERROR, got %s", out.status)
	}
	if out.errMessage != "bad filter" {
		t.Fatalf("expected remote error message, got %q", out.errMessage)
	}
}

func TestPollUntilTerminalMissingDownloadURL(t *testing.T) {
	client := &fakeClient{statuses: []statusStep{
		{resp: &marketsync.ReportStatusResponse{Status: marketsync.RemoteStatusSuccess}},
	}}

	out := pollUntilTerminal(context.Background(), client, "report-1", fastConfig())
	if out.status != models.ReportStatusError {
		t.Fatalf("a ready report without a download url must fail, got %s", out.status)
	}
}

func TestPollUntilTerminalTimesOut(t *testing.T) {
	client := &fakeClient{statuses: []statusStep{
		{resp: &marketsync.ReportStatusResponse{Status: marketsync.RemoteStatusPending}},
	}}
	cfg := fastConfig()
	cfg.PollTimeout = 20 * time.Millisecond

	out := pollUntilTerminal(context.Background(), client, "report-1", cfg)
	if out.status != models.ReportStatusTimeout {
		t.Fatalf("expected TIMEOUT, got %s", out.status)
	}
	if out.sawProgress {
		t.Fatal("remote never left PENDING")
	}
}

func TestPollUntilTerminalToleratesTransientErrors(t *testing.T) {
	client := &fakeClient{statuses: []statusStep{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{resp: &marketsync.ReportStatusResponse{Status: marketsync.RemoteStatusSuccess, DownloadURL: "https://dl/x"}},
	}}

	out := pollUntilTerminal(context.Background(), client, "report-1", fastConfig())
	if out.status != models.ReportStatusSuccess {
		t.Fatalf("transient blips under the cap must not fail the run, got %s", out.status)
	}
}

func TestPollUntilTerminalGivesUpAfterConsecutiveErrors(t *testing.T) {
	client := &fakeClient{statuses: []statusStep{
		{err: errors.New("connection reset")},
	}}
	cfg := fastConfig()
	cfg.MaxTransientErrors = 2

	out := pollUntilTerminal(context.Background(), client, "report-1", cfg)
	if out.status != models.ReportStatusError {
		t.Fatalf("expected ERROR after exhausting retries, got %s", out.status)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 attempts (max 2 transient + 1), got %d", client.calls)
	}
}

func TestPollUntilTerminalHonorsCancellation(t *testing.T) {
	client := &fakeClient{statuses: []statusStep{
		{resp: &marketsync.ReportStatusResponse{Status: marketsync.RemoteStatusPending}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := pollUntilTerminal(ctx, client, "report-1", fastConfig())
	if out.status != models.ReportStatusTimeout {
		t.Fatalf("cancellation must land in TIMEOUT, got %s", out.status)
	}
}
