package api

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignFn produces a hex-encoded signature over the server's challenge
// message.
type SignFn func(message string) (string, error)

// PersonalSigner wraps a private key as an EIP-191 personal-message
// signer suitable for Authenticate.
func PersonalSigner(privKey *ecdsa.PrivateKey) SignFn {
	return func(message string) (string, error) {
		sig, err := crypto.Sign(accounts.TextHash([]byte(message)), privKey)
		if err != nil {
			return "", err
		}
		sig[crypto.RecoveryIDOffset] += 27
		return "0x" + fmt.Sprintf("%x", sig), nil
	}
}

// Authenticate performs the two-step sign-in-with-wallet handshake:
// request a challenge payload, sign it with the caller-supplied signer,
// then connect. On success the returned session nonce and Set-Cookie
// bundle are captured; both must be present or the sign-in fails.
func (c *Client) Authenticate(ctx context.Context, address string, signFn SignFn) error {
	payloadReq := authPayloadRequest{ChainId: c.chainId, Address: address}
	raw, err := c.do(ctx, http.MethodPost, "/v1/auth/payload", payloadReq, false, false)
	if err != nil {
		return fmt.Errorf("fail to request auth payload: %w", err)
	}
	var payload authPayloadResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("fail to decode auth payload: %w", err)
	}

	signature, err := signFn(payload.Message)
	if err != nil {
		return fmt.Errorf("fail to sign auth message: %w", err)
	}

	connectReq := authConnectRequest{
		ChainId:   c.chainId,
		Address:   address,
		Message:   payload.Message,
		Nonce:     payload.Nonce,
		IssuedAt:  payload.IssuedAt,
		Mac:       payload.Mac,
		Signature: signature,
	}
	body, err := json.Marshal(connectReq)
	if err != nil {
		return err
	}

	// issued directly (not via do) to reach the Set-Cookie header
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseUrl+"/v1/auth/connect", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return c.classify(res.StatusCode, resBody, false)
	}

	var connect authConnectResponse
	if err := json.Unmarshal(resBody, &connect); err != nil {
		return fmt.Errorf("fail to decode auth connect response: %w", err)
	}
	cookies := res.Cookies()
	if connect.Nonce == "" || len(cookies) == 0 {
		return fmt.Errorf("fail to sign in: server returned nonce=%q cookies=%v", connect.Nonce, len(cookies))
	}

	c.mu.Lock()
	c.session = Session{Nonce: connect.Nonce, Cookies: cookies, Authenticated: true}
	c.mu.Unlock()
	c.logger.Info("authenticated")
	return nil
}
