package adapters

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sony/gobreaker"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// S3Deployer uploads a build's optimized directory tree to an S3
// bucket fronted by a CDN, returning the public edge URL. Wired from
// the aws-sdk-go-v2 family already present in the example pack.
type S3Deployer struct {
	uploader  *manager.Uploader
	bucket    string
	publicURL string // e.g. https://cdn.example.com, objects keyed under {projectName}/
	cb        *gobreaker.CircuitBreaker
}

// NewS3Deployer loads AWS credentials from the standard environment
// chain, matching how the rest of the pack's services construct their
// AWS clients.
func NewS3Deployer(ctx context.Context, bucket, publicURL string) (*S3Deployer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("adapters: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Deployer{
		uploader:  manager.NewUploader(client),
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		cb:        newBreaker("deploy"),
	}, nil
}

func (d *S3Deployer) Deploy(ctx context.Context, projectName, localDir, sourceURL string) (*DeployResult, error) {
	return wrapTransient(d.cb, "deploy", func() (*DeployResult, error) {
		err := filepath.WalkDir(localDir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(localDir, path)
			if err != nil {
				return err
			}
			key := projectName + "/" + filepath.ToSlash(rel)

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			contentType := mime.TypeByExtension(filepath.Ext(path))
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			_, err = d.uploader.Upload(ctx, &s3.PutObjectInput{
				Bucket:      &d.bucket,
				Key:         &key,
				Body:        f,
				ContentType: &contentType,
			})
			return err
		})
		if err != nil {
			return nil, xerrors.New(xerrors.TransientUpstream, "deploy", "upload", err.Error(), err)
		}
		return &DeployResult{URL: d.publicURL + "/" + projectName}, nil
	})
}
