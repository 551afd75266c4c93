package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a simple fake implementing ssmAPI for tests.
type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
	lastIn *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastIn = in
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func valueOut(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: strPtr(v)}}
}

func TestGetParameter_ResolvesUnderPrefix(t *testing.T) {
	api := &fakeAPI{getOut: valueOut("sk-raw")}
	client, err := New(api, "/concierge/prod/")
	require.NoError(t, err)

	v, err := client.GetParameter(context.Background(), "openai-api-key")
	require.NoError(t, err)
	require.Equal(t, "sk-raw", v)
	require.Equal(t, "/concierge/prod/openai-api-key", *api.lastIn.Name)
	require.True(t, *api.lastIn.WithDecryption)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api, "/concierge")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api, "/concierge")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{}, "/concierge")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), " / ")
	require.ErrorContains(t, err, "required")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "/concierge")
	require.ErrorContains(t, err, "must not be nil")

	_, err = New(&fakeAPI{}, " / ")
	require.ErrorContains(t, err, "prefix")
}

func TestGetSecret_JSONToken(t *testing.T) {
	client, err := New(&fakeAPI{getOut: valueOut(`{"token":"sk-from-json"}`)}, "/concierge")
	require.NoError(t, err)
	v, err := client.GetSecret(context.Background(), "openai-api-key")
	require.NoError(t, err)
	require.Equal(t, "sk-from-json", v)
}

func TestUnwrapSecret(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr string
	}{
		{name: "raw", raw: " sk_live_1 \n", want: "sk_live_1"},
		{name: "json", raw: `{"token":"sk-1"}`, want: "sk-1"},
		{name: "json missing token", raw: `{"other":"v"}`, wantErr: "secret is empty"},
		{name: "malformed json", raw: `{"broken`, wantErr: "unmarshal"},
		{name: "empty", raw: "  ", wantErr: "secret is empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := UnwrapSecret(tc.raw)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, v)
		})
	}
}
