package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/types"
)

var testSecret = []byte("test-signing-secret")

func newStoreWithUser(t *testing.T, user *types.User) storage.Store {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	if user != nil {
		require.NoError(t, store.CreateUser(user))
	}
	return store
}

func TestVerifyValidToken(t *testing.T) {
	user := &types.User{ID: "u1", Email: "dev@example.com", OrganizationID: "org-1", IsActive: true}
	store := newStoreWithUser(t, user)
	v := NewJWTVerifier(testSecret, store)

	token, err := SignToken(testSecret, user, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "org-1", got.OrganizationID)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	user := &types.User{ID: "u1", IsActive: true}
	store := newStoreWithUser(t, user)
	v := NewJWTVerifier(testSecret, store)

	token, err := SignToken([]byte("other-secret"), user, time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	user := &types.User{ID: "u1", IsActive: true}
	store := newStoreWithUser(t, user)
	v := NewJWTVerifier(testSecret, store)

	token, err := SignToken(testSecret, user, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	store := newStoreWithUser(t, nil)
	v := NewJWTVerifier(testSecret, store)

	_, err := v.Verify("not-a-jwt")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerifyRejectsUnknownSubject(t *testing.T) {
	store := newStoreWithUser(t, nil)
	v := NewJWTVerifier(testSecret, store)

	token, err := SignToken(testSecret, &types.User{ID: "ghost"}, time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerifyRejectsInactiveUser(t *testing.T) {
	user := &types.User{ID: "u1", IsActive: false}
	store := newStoreWithUser(t, user)
	v := NewJWTVerifier(testSecret, store)

	token, err := SignToken(testSecret, user, time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.True(t, errors.Is(err, ErrInactiveUser))
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	user := &types.User{ID: "u1", IsActive: true}
	store := newStoreWithUser(t, user)
	v := NewJWTVerifier(testSecret, store)

	// alg=none tokens must never validate.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u1"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}
