package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/database"
	"github.com/ardanlabs/ledgernode/foundation/blockchain/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_GenerateAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kennedy.json")

	var out bytes.Buffer
	require.NoError(t, generate(&out, path, false))
	assert.Contains(t, out.String(), "address: 1")

	assert.Error(t, generate(&out, path, false), "should not overwrite a wallet")

	w, err := wallet.Load(path)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, address(&out, path))
	assert.Equal(t, w.Address()+"\n", out.String())
}

func Test_SendBalance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "private.json")

	var out bytes.Buffer
	require.NoError(t, generate(&out, path, false))

	w, err := wallet.Load(path)
	require.NoError(t, err)

	recipient, err := wallet.Generate()
	require.NoError(t, err)

	var submitted database.Tx
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/tx/submit":
			json.NewDecoder(r.Body).Decode(&submitted)
			json.NewEncoder(rw).Encode(submitResult{TxHash: submitted.TxHash, Status: "Valid"})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/balance/"):
			json.NewEncoder(rw).Encode(balance{Address: strings.TrimPrefix(r.URL.Path, "/v1/balance/"), Balance: 9950})

		default:
			rw.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(rw).Encode(map[string]string{"error": "ledger unavailable"})
		}
	}))
	defer srv.Close()

	out.Reset()
	require.NoError(t, send(&out, srv.URL, path, recipient.Address(), 50))
	assert.Contains(t, out.String(), "status: Valid")

	require.NoError(t, submitted.Validate(), "the node should get a signed transaction")
	assert.Equal(t, w.Address(), submitted.Sender)
	assert.Equal(t, uint64(50), submitted.Amount)

	out.Reset()
	require.NoError(t, balanceRun(&out, srv.URL, path))
	assert.Contains(t, out.String(), "balance: 9950")

	err = balanceRun(&out, srv.URL+"/down", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger unavailable")

	assert.Error(t, send(&out, srv.URL, path, "not-an-address", 50))
}
