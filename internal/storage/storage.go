package storage

import (
	"context"
	"io"
	"log"

	"github.com/UnendingLoop/PolypSegmentation/internal/appconfig"
	"github.com/UnendingLoop/PolypSegmentation/internal/storage/memstorage"
	"github.com/UnendingLoop/PolypSegmentation/internal/storage/miniostorage"
	"github.com/wb-go/wbf/retry"
)

// ObjectStorage - общий контракт бэкендов превью
type ObjectStorage interface {
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// NewPreviewStorage picks the backend named in settings. For minio the
// connection is retried by strategy until it succeeds, attempts run out or
// ctx is done.
func NewPreviewStorage(ctx context.Context, cfg appconfig.Getter, backend string, strategy retry.Strategy) (ObjectStorage, error) {
	if backend != appconfig.BackendMinio {
		log.Println("Using in-memory preview storage")
		return memstorage.New(), nil
	}

	// хотя бы одна попытка, иначе DoContext вернет nil без клиента
	if strategy.Attempts < 1 {
		strategy.Attempts = 1
	}

	var client *miniostorage.MinioImageStorage
	err := retry.DoContext(ctx, strategy, func() error {
		log.Println("Connecting to IMG-storage...")
		c, err := miniostorage.NewMinioClient(ctx, cfg)
		if err != nil {
			log.Printf("Failed to init connection to IMG-storage: %v", err)
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Println("Successfully connected IMG-storage!")
	return client, nil
}
