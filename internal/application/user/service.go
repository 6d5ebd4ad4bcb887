package user

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/marisec-auth/internal/domain"
	s3infra "github.com/marisec-auth/internal/infrastructure/s3"
	"github.com/marisec-auth/internal/pkg/id"
)

const (
	MaxAvatarBytes = 5 << 20

	avatarURLTTL = 15 * time.Minute
)

// Profile is the user as shown to its owner.
type Profile struct {
	User      *domain.User
	AvatarURL string
}

// AvatarUpload is an avatar image read from a request.
type AvatarUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

type Service interface {
	Profile(ctx context.Context, u *domain.User) (*Profile, error)
	UploadAvatar(ctx context.Context, u *domain.User, upload AvatarUpload) (*Profile, error)
}

type userStore interface {
	SetAvatarKey(ctx context.Context, userID, key string) error
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type ServiceDeps struct {
	UserRepo userStore
	// Avatars may be nil when object storage is not configured.
	Avatars objectStore
	Logger  *slog.Logger
}

type service struct {
	repo    userStore
	avatars objectStore
	log     *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &service{repo: deps.UserRepo, avatars: deps.Avatars, log: log}
}

func (s *service) Profile(ctx context.Context, u *domain.User) (*Profile, error) {
	p := &Profile{User: u, AvatarURL: u.Avatar}
	if u.AvatarKey == "" || s.avatars == nil {
		return p, nil
	}
	url, err := s.avatars.PresignedURL(ctx, u.AvatarKey, avatarURLTTL)
	if err != nil {
		// The profile is still useful without a picture.
		s.log.WarnContext(ctx, "failed to presign avatar", "user_id", u.UserID, "err", err)
		return p, nil
	}
	p.AvatarURL = url
	return p, nil
}

func (s *service) UploadAvatar(ctx context.Context, u *domain.User, upload AvatarUpload) (*Profile, error) {
	if s.avatars == nil {
		return nil, fmt.Errorf("avatar storage not configured: %w", domain.ErrStoreUnavailable)
	}
	ext, ok := s3infra.ExtensionFor(upload.ContentType)
	if !ok {
		return nil, fmt.Errorf("unsupported avatar type %q: %w", upload.ContentType, domain.ErrBadRequest)
	}
	if upload.Size <= 0 || upload.Size > MaxAvatarBytes {
		return nil, fmt.Errorf("avatar must be between 1 byte and %d bytes: %w", MaxAvatarBytes, domain.ErrBadRequest)
	}

	key := fmt.Sprintf("avatars/%s/%s%s", u.UserID, id.New(), ext)
	if err := s.avatars.Upload(ctx, key, upload.Body, upload.Size, upload.ContentType); err != nil {
		return nil, err
	}
	if err := s.repo.SetAvatarKey(ctx, u.UserID, key); err != nil {
		if delErr := s.avatars.Delete(ctx, key); delErr != nil {
			s.log.WarnContext(ctx, "failed to remove orphaned avatar", "key", key, "err", delErr)
		}
		return nil, err
	}

	if old := u.AvatarKey; old != "" {
		if err := s.avatars.Delete(ctx, old); err != nil {
			s.log.WarnContext(ctx, "failed to delete previous avatar", "key", old, "err", err)
		}
	}
	updated := *u
	updated.AvatarKey = key
	return s.Profile(ctx, &updated)
}
