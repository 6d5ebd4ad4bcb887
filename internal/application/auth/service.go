package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marisec-auth/internal/application/otp"
	"github.com/marisec-auth/internal/application/session"
	"github.com/marisec-auth/internal/domain"
	"github.com/marisec-auth/internal/pkg/id"
	"github.com/marisec-auth/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

const otpSubject = "Your verification code"

type IssueOTPRequest struct {
	Email           string                   `json:"email" validate:"required,email"`
	Type            domain.OTPType           `json:"type" validate:"required,oneof=registration login"`
	Phone           string                   `json:"phone" validate:"omitempty,e164"`
	PendingUserData *domain.PendingUserInput `json:"pendingUserData"`
}

type VerifyOTPRequest struct {
	Email string         `json:"email" validate:"required,email"`
	OTP   string         `json:"otp" validate:"required,len=6,numeric"`
	Type  domain.OTPType `json:"type" validate:"omitempty,oneof=registration login"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Result is a successful sign-in or sign-up.
type Result struct {
	User    *domain.User
	Session *session.Issued
	// Created is true when the call materialized a new user.
	Created bool
}

type Service interface {
	IssueOTP(ctx context.Context, req IssueOTPRequest) error
	VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*Result, error)
	Login(ctx context.Context, req LoginRequest) (*Result, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
}

type otpEngine interface {
	Issue(ctx context.Context, email string, otpType domain.OTPType, pending *domain.PendingUser) (string, error)
	Verify(ctx context.Context, email, code string, otpType domain.OTPType) (*otp.Result, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	MarkEmailVerified(ctx context.Context, userID string) error
}

type sessionIssuer interface {
	Issue(userID, email string) (*session.Issued, error)
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type eventPublisher interface {
	PublishUserRegistered(ctx context.Context, u *domain.User) error
}

type ServiceDeps struct {
	OTP      otpEngine
	UserRepo userStore
	Sessions sessionIssuer
	Mailer   mailer
	// SMSSender and Events are optional.
	SMSSender smsSender
	Events    eventPublisher
	Logger    *slog.Logger
	// DeliveryRequired makes a failed code delivery fail the issue call.
	DeliveryRequired bool
	OTPTTL           time.Duration
	BcryptCost       int
}

type service struct {
	otp              otpEngine
	users            userStore
	sessions         sessionIssuer
	mailer           mailer
	sms              smsSender
	events           eventPublisher
	log              *slog.Logger
	deliveryRequired bool
	otpTTL           time.Duration
	bcryptCost       int
	dummyHash        []byte
	now              func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		otp:              deps.OTP,
		users:            deps.UserRepo,
		sessions:         deps.Sessions,
		mailer:           deps.Mailer,
		sms:              deps.SMSSender,
		events:           deps.Events,
		log:              deps.Logger,
		deliveryRequired: deps.DeliveryRequired,
		otpTTL:           deps.OTPTTL,
		bcryptCost:       deps.BcryptCost,
		now:              time.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.otpTTL <= 0 {
		s.otpTTL = otp.DefaultTTL
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	// Unknown emails are compared against this so both paths cost one bcrypt run.
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), s.bcryptCost)
	return s
}

func (s *service) IssueOTP(ctx context.Context, req IssueOTPRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrBadRequest, err)
	}

	var pending *domain.PendingUser
	switch req.Type {
	case domain.OTPRegistration:
		if req.PendingUserData == nil {
			return fmt.Errorf("pendingUserData is required for registration: %w", domain.ErrBadRequest)
		}
		if err := s.ensureEmailFree(ctx, req.Email); err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.PendingUserData.Password), s.bcryptCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		pending = &domain.PendingUser{
			Username:     req.PendingUserData.Username,
			PasswordHash: string(hash),
			Name:         req.PendingUserData.Name,
			DateOfBirth:  req.PendingUserData.DateOfBirth,
			Avatar:       req.PendingUserData.Avatar,
		}
	case domain.OTPLogin:
		if _, err := s.users.GetByEmail(ctx, req.Email); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// Acknowledge without issuing so the response does not reveal the account.
				s.log.InfoContext(ctx, "login otp requested for unknown email")
				return nil
			}
			return err
		}
	}

	code, err := s.otp.Issue(ctx, req.Email, req.Type, pending)
	if err != nil {
		return err
	}
	return s.deliver(ctx, req, code)
}

func (s *service) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case errors.Is(err, domain.ErrStoreUnavailable):
		// Checked again at verification, when the user row is actually written.
		s.log.WarnContext(ctx, "user store unavailable, skipping duplicate email check", "err", err)
		return nil
	default:
		return err
	}
}

func (s *service) deliver(ctx context.Context, req IssueOTPRequest, code string) error {
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.otpTTL.Minutes()))

	err := s.mailer.SendEmail(req.Email, otpSubject, body)
	if err == nil && req.Phone != "" && s.sms != nil {
		err = s.sms.SendSMS(ctx, req.Phone, body)
	}
	if err == nil {
		return nil
	}
	if s.deliveryRequired {
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}
	s.log.WarnContext(ctx, "otp delivery failed, continuing", "type", req.Type, "err", err)
	return nil
}

func (s *service) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBadRequest, err)
	}
	res, err := s.otp.Verify(ctx, req.Email, req.OTP, req.Type)
	if err != nil {
		return nil, err
	}
	if res.Type == domain.OTPRegistration {
		return s.completeRegistration(ctx, req.Email, res.PendingUser)
	}
	return s.completeLogin(ctx, req.Email)
}

func (s *service) completeRegistration(ctx context.Context, email string, pending *domain.PendingUser) (*Result, error) {
	if pending == nil {
		return nil, fmt.Errorf("registration record has no pending user: %w", domain.ErrBadRequest)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	u := &domain.User{
		UserID:          id.New(),
		Username:        pending.Username,
		Email:           email,
		PasswordHash:    pending.PasswordHash,
		Name:            pending.Name,
		Avatar:          pending.Avatar,
		IsEmailVerified: true,
		Subscription:    domain.Subscription{Plan: domain.PlanFree, Status: domain.SubscriptionActive},
		Usage:           domain.Usage{Used: 0, Limit: domain.DefaultUsageLimit},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if pending.DateOfBirth != "" {
		dob, err := time.Parse(time.DateOnly, pending.DateOfBirth)
		if err != nil {
			return nil, fmt.Errorf("date_of_birth: %w", domain.ErrBadRequest)
		}
		u.DateOfBirth = &dob
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	if s.events != nil {
		if err := s.events.PublishUserRegistered(ctx, u); err != nil {
			s.log.WarnContext(ctx, "failed to publish registration event", "user_id", u.UserID, "err", err)
		}
	}

	issued, err := s.sessions.Issue(u.UserID, u.Email)
	if err != nil {
		return nil, err
	}
	return &Result{User: u, Session: issued, Created: true}, nil
}

func (s *service) completeLogin(ctx context.Context, email string) (*Result, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsEmailVerified {
		if err := s.users.MarkEmailVerified(ctx, u.UserID); err != nil {
			s.log.WarnContext(ctx, "failed to mark email verified", "user_id", u.UserID, "err", err)
		} else {
			u.IsEmailVerified = true
		}
	}
	issued, err := s.sessions.Issue(u.UserID, u.Email)
	if err != nil {
		return nil, err
	}
	return &Result{User: u, Session: issued}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBadRequest, err)
	}
	u, err := s.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	issued, err := s.sessions.Issue(u.UserID, u.Email)
	if err != nil {
		return nil, err
	}
	return &Result{User: u, Session: issued}, nil
}

// Authenticate looks the user up by exact email and checks the password. A
// missing user and a wrong password produce the same ErrInvalidCredentials.
func (s *service) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}
