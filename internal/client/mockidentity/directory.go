package mockidentity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authsession/internal/client/models"
	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const maxResetAttempts = 5

// Outbox receives reset codes in place of an email provider.
type Outbox interface {
	SendResetCode(ctx context.Context, email, code string) error
}

type OutboxFunc func(ctx context.Context, email, code string) error

func (f OutboxFunc) SendResetCode(ctx context.Context, email, code string) error {
	return f(ctx, email, code)
}

type Config struct {
	Secret        []byte
	SessionTTL    time.Duration
	ResetCodeTTL  time.Duration
	ResetTokenTTL time.Duration
	ResetCooldown time.Duration
	BcryptCost    int
	Now           func() time.Time
	Outbox        Outbox
}

func (c *Config) setDefaults() {
	if len(c.Secret) == 0 {
		c.Secret = common.GenerateRandByteArray(32)
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.ResetCodeTTL == 0 {
		c.ResetCodeTTL = 10 * time.Minute
	}
	if c.ResetTokenTTL == 0 {
		c.ResetTokenTTL = 15 * time.Minute
	}
	if c.ResetCooldown == 0 {
		c.ResetCooldown = 30 * time.Second
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.MinCost
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

type account struct {
	user         models.User
	passwordHash []byte
}

type resetCode struct {
	code      string
	issuedAt  time.Time
	expiresAt time.Time
	attempts  int
}

type registration struct {
	Identifier  string `validate:"required,email,max=254"`
	Secret      string `validate:"required,min=8,max=72"`
	DisplayName string `validate:"max=100"`
	Phone       string `validate:"omitempty,e164"`
}

// Directory is safe for concurrent use.
type Directory struct {
	cfg      Config
	validate *validator.Validate

	mu         sync.Mutex
	nextID     int64
	accounts   map[string]*account
	byID       map[int64]*account
	resetCodes map[string]*resetCode
	revoked    map[string]time.Time
	usedResets map[string]time.Time
}

func NewDirectory(cfg Config) *Directory {
	cfg.setDefaults()
	return &Directory{
		cfg:        cfg,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		accounts:   make(map[string]*account),
		byID:       make(map[int64]*account),
		resetCodes: make(map[string]*resetCode),
		revoked:    make(map[string]time.Time),
		usedResets: make(map[string]time.Time),
	}
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// Register creates an account. Identifiers are case-insensitive.
func (d *Directory) Register(ctx context.Context, data models.UserData) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reg := registration{
		Identifier:  normalize(data.Identifier),
		Secret:      string(data.Secret),
		DisplayName: data.DisplayName,
		Phone:       data.Phone,
	}
	if err := d.validate.Struct(reg); err != nil {
		return nil, validationError(err)
	}

	hash, err := d.hashPassword(data.Secret)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.accounts[reg.Identifier]; ok {
		return nil, errIdentifierTaken(reg.Identifier)
	}

	d.nextID++
	acc := &account{
		user: models.User{
			ID:          d.nextID,
			Identifier:  reg.Identifier,
			DisplayName: data.DisplayName,
			Phone:       data.Phone,
			CreatedAt:   d.cfg.Now().UTC().Truncate(time.Second),
		},
		passwordHash: hash,
	}
	d.accounts[reg.Identifier] = acc
	d.byID[acc.user.ID] = acc

	return acc.user.Clone(), nil
}

// Login checks the password and issues a session token.
func (d *Directory) Login(ctx context.Context, identifier string, secret []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.Lock()
	acc, ok := d.accounts[normalize(identifier)]
	var (
		id   int64
		hash []byte
	)
	if ok {
		id, hash = acc.user.ID, acc.passwordHash
	}
	d.mu.Unlock()
	if !ok {
		return "", errInvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword(hash, secret); err != nil {
		return "", errInvalidCredentials()
	}

	return generateToken(strconv.FormatInt(id, 10), purposeSession, d.cfg.Secret, d.cfg.Now(), d.cfg.SessionTTL)
}

// UserByToken resolves the owner of a live session token.
func (d *Directory) UserByToken(ctx context.Context, token string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	claims, err := d.sessionClaims(token)
	if err != nil {
		return nil, err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, errToken(CodeInvalidToken, "malformed subject")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	acc, ok := d.byID[id]
	if !ok {
		return nil, errToken(CodeInvalidToken, "account no longer exists")
	}
	return acc.user.Clone(), nil
}

// Logout revokes a session token. Revoking an already revoked token is not
// an error.
func (d *Directory) Logout(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	claims, err := d.sessionClaims(token)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Code == CodeTokenRevoked {
			return nil
		}
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.revoked[claims.ID] = claims.ExpiresAt.Time
	d.gcLocked()
	return nil
}

func (d *Directory) sessionClaims(token string) (*Claims, error) {
	claims, err := parseToken(token, purposeSession, d.cfg.Secret, d.cfg.Now)
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return nil, errToken(CodeTokenExpired, "session token expired")
	case err != nil:
		return nil, errToken(CodeInvalidToken, "session token is invalid")
	}

	d.mu.Lock()
	_, revoked := d.revoked[claims.ID]
	d.mu.Unlock()
	if revoked {
		return nil, errToken(CodeTokenRevoked, "session token was revoked")
	}
	return claims, nil
}

// SendResetCode issues a reset code for email and hands it to the outbox.
// Unknown addresses are accepted silently so the answer does not reveal
// which accounts exist. It reports false without issuing a new code while
// the previous one is younger than the cooldown.
func (d *Directory) SendResetCode(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	email = normalize(email)
	if err := d.validate.Var(email, "required,email"); err != nil {
		return false, errValidation("email must be a valid address")
	}

	now := d.cfg.Now()

	d.mu.Lock()
	if _, ok := d.accounts[email]; !ok {
		d.mu.Unlock()
		return true, nil
	}
	if prev, ok := d.resetCodes[email]; ok && now.Sub(prev.issuedAt) < d.cfg.ResetCooldown {
		d.mu.Unlock()
		return false, nil
	}
	code, err := newResetCode()
	if err != nil {
		d.mu.Unlock()
		return false, err
	}
	d.resetCodes[email] = &resetCode{code: code, issuedAt: now, expiresAt: now.Add(d.cfg.ResetCodeTTL)}
	d.mu.Unlock()

	if d.cfg.Outbox != nil {
		if err := d.cfg.Outbox.SendResetCode(ctx, email, code); err != nil {
			return false, fmt.Errorf("deliver reset code: %w", err)
		}
	}
	return true, nil
}

// VerifyResetCode exchanges a valid code for a single-use reset token.
// A code is invalidated after use, after expiry, and after too many
// wrong guesses.
func (d *Directory) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	email = normalize(email)
	now := d.cfg.Now()

	d.mu.Lock()
	rc, ok := d.resetCodes[email]
	if !ok || now.After(rc.expiresAt) {
		delete(d.resetCodes, email)
		d.mu.Unlock()
		return "", errInvalidResetCode()
	}
	if subtle.ConstantTimeCompare([]byte(rc.code), []byte(strings.TrimSpace(code))) != 1 {
		rc.attempts++
		if rc.attempts >= maxResetAttempts {
			delete(d.resetCodes, email)
		}
		d.mu.Unlock()
		return "", errInvalidResetCode()
	}
	delete(d.resetCodes, email)
	d.mu.Unlock()

	return generateToken(email, purposePasswordReset, d.cfg.Secret, now, d.cfg.ResetTokenTTL)
}

// ChangePassword sets a new password using a reset token from
// VerifyResetCode. Each reset token works once.
func (d *Directory) ChangePassword(ctx context.Context, email, newPassword, resetToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	email = normalize(email)
	claims, err := parseToken(resetToken, purposePasswordReset, d.cfg.Secret, d.cfg.Now)
	if err != nil || claims.Subject != email {
		return errInvalidResetToken()
	}

	if err := d.validate.Var(newPassword, "required,min=8,max=72"); err != nil {
		return errValidation("password must be 8 to 72 characters long")
	}

	hash, err := d.hashPassword([]byte(newPassword))
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, used := d.usedResets[claims.ID]; used {
		return errInvalidResetToken()
	}
	acc, ok := d.accounts[email]
	if !ok {
		return errInvalidResetToken()
	}

	acc.passwordHash = hash
	d.usedResets[claims.ID] = claims.ExpiresAt.Time
	d.gcLocked()
	return nil
}

// gcLocked drops revocation entries for tokens that have expired anyway.
func (d *Directory) gcLocked() {
	now := d.cfg.Now()
	for id, exp := range d.revoked {
		if now.After(exp) {
			delete(d.revoked, id)
		}
	}
	for id, exp := range d.usedResets {
		if now.After(exp) {
			delete(d.usedResets, id)
		}
	}
}

// maxPasswordBytes is bcrypt's input limit. The validator tags count
// runes, so multi-byte passwords are checked here.
const maxPasswordBytes = 72

func (d *Directory) hashPassword(secret []byte) ([]byte, error) {
	if len(secret) > maxPasswordBytes {
		return nil, errValidation("password must not exceed 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword(secret, d.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func newResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errValidation(err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return errValidation(strings.Join(msgs, "; "))
}
