package marketsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getStorageClient initializes a Google Cloud Storage client.
// Prefers ADC; explicit JSON via GCS_CREDENTIALS_JSON for local use.
func getStorageClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// ArchiveReportPayload stores the raw downloaded report in GCS for audit.
// Best-effort: callers log failures but never fail the ETL run on them.
func ArchiveReportPayload(ctx context.Context, reportCode string, payload []byte) (string, error) {
	bucketName := strings.TrimSpace(os.Getenv("REPORT_ARCHIVE_BUCKET"))
	if bucketName == "" {
		return "", errors.New("REPORT_ARCHIVE_BUCKET is not set")
	}

	client, err := getStorageClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	objectName := fmt.Sprintf("reports/%s/%s.csv", time.Now().UTC().Format("2006/01/02"), reportCode)

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
