package tickets

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed tokens and bad signatures.
	ErrInvalidToken = errors.New("invalid ticket token")
	// ErrExpiredToken is returned for well-signed tokens past their expiry.
	ErrExpiredToken = errors.New("ticket token expired")
)

// Claims is the content of a check-in ticket.
type Claims struct {
	BookingID string
	SubjectID string
	ExpiresAt time.Time
}

// Signer issues and verifies HMAC-SHA256 check-in tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer. A non-positive ttl defaults to seven days.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token for the booking and its expiry.
func (s *Signer) Issue(bookingID, subjectID string) (string, time.Time, error) {
	if bookingID == "" || subjectID == "" {
		return "", time.Time{}, fmt.Errorf("booking and subject ids are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	subject := base64.RawURLEncoding.EncodeToString([]byte(subjectID))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{bookingID, ts, subject, s.sign(bookingID, ts, subject)}, ".")
	return token, expiresAt, nil
}

// Verify checks the signature and expiry of token.
func (s *Signer) Verify(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 || parts[0] == "" {
		return Claims{}, ErrInvalidToken
	}
	bookingID, ts, subject, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(bookingID, ts, subject)), []byte(signature)) {
		return Claims{}, ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	rawSubject, err := base64.RawURLEncoding.DecodeString(subject)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	claims := Claims{BookingID: bookingID, SubjectID: string(rawSubject), ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(claims.ExpiresAt) {
		return claims, ErrExpiredToken
	}
	return claims, nil
}

func (s *Signer) sign(bookingID, ts, subject string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(bookingID + "|" + ts + "|" + subject))
	return hex.EncodeToString(mac.Sum(nil))
}
