package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/image-scraper-service/internal/entity"
	"github.com/user/image-scraper-service/internal/repository"
	"github.com/user/image-scraper-service/pkg/utils"
)

const relayCachePrefix = "relay:"

const (
	fieldContentType = "content_type"
	fieldBody        = "body"
)

// RelayCacheRepoImpl provides a concrete implementation for the RelayCacheRepository interface using Redis hashes.
type RelayCacheRepoImpl struct {
	client *redis.Client
}

// NewRelayCacheRepo creates a new instance of RelayCacheRepoImpl.
func NewRelayCacheRepo(client *redis.Client) *RelayCacheRepoImpl {
	return &RelayCacheRepoImpl{client: client}
}

// generateKey creates a consistent Redis key for a given URL by hashing it.
func (r *RelayCacheRepoImpl) generateKey(url string) string {
	return fmt.Sprintf("%s%s", relayCachePrefix, utils.HashURL(url))
}

// Get returns the cached image, or nil when the key is absent or expired.
func (r *RelayCacheRepoImpl) Get(ctx context.Context, url string) (*entity.RelayedImage, error) {
	fields, err := r.client.HGetAll(ctx, r.generateKey(url)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeRelayedImage(url, fields), nil
}

// Put stores the image body and content type, expiring after ttl.
// HSET and EXPIRE run in one MULTI so the entry never lives without a TTL.
func (r *RelayCacheRepoImpl) Put(ctx context.Context, img *entity.RelayedImage, ttl time.Duration) error {
	key := r.generateKey(img.SourceURL)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldContentType, img.ContentType, fieldBody, img.Body)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func decodeRelayedImage(url string, fields map[string]string) *entity.RelayedImage {
	body, ok := fields[fieldBody]
	if !ok {
		return nil
	}
	return &entity.RelayedImage{
		SourceURL:   url,
		ContentType: fields[fieldContentType],
		Body:        []byte(body),
	}
}

var _ repository.RelayCacheRepository = (*RelayCacheRepoImpl)(nil)
