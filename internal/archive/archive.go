// Package archive exports final standings to S3 compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/AdamBeresnev/duplas/internal/config"
	"github.com/AdamBeresnev/duplas/internal/standings"
	"github.com/AdamBeresnev/duplas/internal/tournament"
)

// ObjectPutter is the part of the S3 client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archive struct {
	client ObjectPutter
	bucket string
}

func New(client ObjectPutter, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket}
}

// NewS3Archive builds a client from static credentials. A custom endpoint switches to
// path style addressing, which R2 and MinIO expect.
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig) (*S3Archive, error) {
	if !cfg.Enabled() {
		return nil, errors.New("archive bucket is not configured")
	}

	sdkCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for archive: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, cfg.Bucket), nil
}

type finalStandings struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	Name         string    `json:"name"`
	Rounds       int       `json:"rounds"`
	FinishedAt   time.Time `json:"finished_at"`

	Weights   standings.Weights          `json:"weights"`
	Standings []standings.StandingEntry `json:"standings"`
}

func Key(t *tournament.Tournament) string {
	return fmt.Sprintf("tournaments/%s/final-standings.json", t.ID)
}

// StoreFinalStandings writes the standings document and returns its object key.
func (a *S3Archive) StoreFinalStandings(ctx context.Context, t *tournament.Tournament, rounds int, entries []standings.StandingEntry) (string, error) {
	finishedAt := time.Now().UTC()
	if t.FinishedAt != nil {
		finishedAt = t.FinishedAt.UTC()
	}

	body, err := json.Marshal(finalStandings{
		TournamentID: t.ID,
		Name:         t.Name,
		Rounds:       rounds,
		FinishedAt:   finishedAt,
		Weights:      standings.WeightsOf(t),
		Standings:    entries,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode final standings: %w", err)
	}

	key := Key(t)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload final standings (key: %s): %w", key, err)
	}
	return key, nil
}
