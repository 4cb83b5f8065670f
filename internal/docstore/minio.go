package docstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectName is where the document is kept inside the bucket.
const ObjectName = Collection + "/" + DocumentID + ".json.zst"

type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore keeps the document as a zstd-compressed object.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewMinioStore connects and creates the bucket when it does not exist yet.
func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, mapMinioErr("open", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, mapMinioErr("open", err)
		}
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &MinioStore{client: client, bucket: opts.Bucket, encoder: encoder, decoder: decoder}, nil
}

func (s *MinioStore) Get(ctx context.Context) (Document, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ObjectName, minio.GetObjectOptions{})
	if err != nil {
		return Document{}, mapMinioErr("get", err)
	}
	defer obj.Close()
	compressed, err := io.ReadAll(obj)
	if err != nil {
		return Document{}, mapMinioErr("get", err)
	}
	body, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return Document{}, storeErr("get", fmt.Errorf("decompress: %w", err))
	}
	doc, err := Decode(body)
	if err != nil {
		return Document{}, storeErr("get", err)
	}
	return doc, nil
}

func (s *MinioStore) Put(ctx context.Context, doc Document) error {
	body, err := Encode(doc)
	if err != nil {
		return storeErr("put", err)
	}
	compressed := s.encoder.EncodeAll(body, make([]byte, 0, len(body)/2))
	_, err = s.client.PutObject(ctx, s.bucket, ObjectName, bytes.NewReader(compressed), int64(len(compressed)),
		minio.PutObjectOptions{ContentType: "application/json", ContentEncoding: "zstd"})
	if err != nil {
		return mapMinioErr("put", err)
	}
	return nil
}

func (s *MinioStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return mapMinioErr("ping", err)
	}
	return nil
}

func (s *MinioStore) Close() error {
	s.decoder.Close()
	return s.encoder.Close()
}

func mapMinioErr(op string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey":
		return ErrNotFound
	case "AccessDenied":
		return fmt.Errorf("%w: %s", ErrPermissionDenied, err.Error())
	}
	return storeErr(op, err)
}
