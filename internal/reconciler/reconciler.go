// Package reconciler long-polls a tenant's SQS-style event queue for
// S3 object-created notifications and drives the matching
// PresignedUploadTask to completion, closing the gap between "client
// PUT the object" and "core knows about it" for the presigned upload
// path.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/docbox-nz/docbox/internal/docboxerr"
)

// Finalizer is the subset of service.Ingestion the reconciler drives.
// Kept as an interface so tests can substitute a fake without wiring a
// full Ingestion.
type Finalizer interface {
	FinalizePresigned(ctx context.Context, fileKey string) error
}

// s3EventNotification is the subset of the standard S3 event envelope
// the reconciler needs: one or more records, each naming the object
// key that changed.
type s3EventNotification struct {
	Records []struct {
		S3 struct {
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// Reconciler polls one tenant's queue and finalizes presigned uploads
// as their backing objects land.
type Reconciler struct {
	client   *sqs.Client
	queueURL string
	finalize Finalizer

	stopCh chan struct{}
}

// New builds a Reconciler bound to queueURL using the default AWS
// config resolution chain (same as objectstore.NewClient).
func New(ctx context.Context, region, queueURL string, finalize Finalizer) (*Reconciler, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("reconciler.New: load aws config: %w", err)
	}
	return &Reconciler{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
		finalize: finalize,
	}, nil
}

// Start launches the long-poll loop in a background goroutine.
func (r *Reconciler) Start() {
	r.stopCh = make(chan struct{})
	go r.run()
}

// Stop halts the poll loop.
func (r *Reconciler) Stop() {
	if r.stopCh != nil {
		close(r.stopCh)
	}
}

func (r *Reconciler) run() {
	for {
		select {
		case <-r.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		if err := r.pollOnce(ctx); err != nil {
			slog.Error("reconciler: poll failed", "error", err)
		}
		cancel()
	}
}

// pollOnce issues one long-poll ReceiveMessage call (20s wait,
// bounded by the request's own timeout) and processes whatever
// arrives.
func (r *Reconciler) pollOnce(ctx context.Context) error {
	out, err := r.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(r.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   30,
	})
	if err != nil {
		return fmt.Errorf("reconciler.pollOnce: receive: %w", err)
	}

	for _, msg := range out.Messages {
		if err := r.handleMessage(ctx, msg); err != nil {
			slog.Error("reconciler: handle message failed", "error", err)
			continue // leave it for redelivery/visibility timeout expiry
		}
		if _, err := r.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(r.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			slog.Error("reconciler: delete message failed", "error", err)
		}
	}
	return nil
}

func (r *Reconciler) handleMessage(ctx context.Context, msg sqstypes.Message) error {
	if msg.Body == nil {
		return nil
	}

	var evt s3EventNotification
	if err := json.Unmarshal([]byte(*msg.Body), &evt); err != nil {
		return fmt.Errorf("reconciler.handleMessage: decode event: %w", err)
	}

	for _, rec := range evt.Records {
		key, err := url.QueryUnescape(rec.S3.Object.Key)
		if err != nil {
			key = rec.S3.Object.Key
		}
		if key == "" || !isRawKey(key) {
			continue
		}
		if err := r.finalize.FinalizePresigned(ctx, key); err != nil {
			// An object with no tracked task (a direct upload's own key,
			// or a task already swept) is acknowledged and dropped, not
			// redelivered.
			if docboxerr.Is(err, docboxerr.NotFound) {
				slog.Debug("reconciler: no task for key, dropping event", "key", key)
				continue
			}
			return fmt.Errorf("finalize %s: %w", key, err)
		}
	}
	return nil
}

// isRawKey reports whether key belongs to the raw/ namespace the
// ingestion coordinator writes presigned uploads under, used to skip
// notifications for generated/derived objects that also live in the
// bucket.
func isRawKey(key string) bool {
	return strings.HasPrefix(key, "raw/")
}
