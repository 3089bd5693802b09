package oauth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staylens-io/staylens-engine/pkg/models"
)

func TestStateCodec_RoundTrip(t *testing.T) {
	codec := NewStateCodec("signing-key", time.Minute)
	projectID := uuid.New()

	state, err := codec.Encode(projectID, models.SourceGoogleAnalytics)
	require.NoError(t, err)

	gotProject, gotSource, err := codec.Decode(state)
	require.NoError(t, err)
	assert.Equal(t, projectID, gotProject)
	assert.Equal(t, models.SourceGoogleAnalytics, gotSource)
}

func TestStateCodec_RejectsTamperedPayload(t *testing.T) {
	codec := NewStateCodec("signing-key", time.Minute)
	state, err := codec.Encode(uuid.New(), models.SourceMetaAds)
	require.NoError(t, err)

	payload, sig, _ := strings.Cut(state, ".")
	tampered := payload[:len(payload)-2] + "xx." + sig

	_, _, err = codec.Decode(tampered)
	assert.Error(t, err)
}

func TestStateCodec_RejectsWrongKey(t *testing.T) {
	state, err := NewStateCodec("key-a", time.Minute).Encode(uuid.New(), models.SourceYouTube)
	require.NoError(t, err)

	_, _, err = NewStateCodec("key-b", time.Minute).Decode(state)
	assert.Error(t, err)
}

func TestStateCodec_RejectsExpired(t *testing.T) {
	codec := NewStateCodec("signing-key", -time.Minute)
	state, err := codec.Encode(uuid.New(), models.SourceGoogleAds)
	require.NoError(t, err)

	_, _, err = codec.Decode(state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestStateCodec_RejectsMalformed(t *testing.T) {
	codec := NewStateCodec("signing-key", time.Minute)
	_, _, err := codec.Decode("no-dot-separator")
	assert.Error(t, err)
}

func TestRegistry_ProviderPerSource(t *testing.T) {
	reg := buildTestRegistry(t)
	for _, source := range models.AllSources() {
		p, err := reg.Provider(source)
		require.NoError(t, err, source)
		assert.NotNil(t, p)
	}

	_, err := reg.Provider(models.SourceType("fax_machine"))
	assert.Error(t, err)
}

func TestProvider_AuthorizationURLCarriesState(t *testing.T) {
	reg := buildTestRegistry(t)
	p, err := reg.Provider(models.SourceGoogleAnalytics)
	require.NoError(t, err)

	u := p.AuthorizationURL("the-state")
	assert.Contains(t, u, "state=the-state")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
}

func buildTestRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := testConfig()
	return NewRegistry(cfg)
}
