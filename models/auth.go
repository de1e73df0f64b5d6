package models

type ChallengeRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

type ChallengeResponse struct {
	WalletAddress string `json:"wallet_address"`
	Message       string `json:"message"`
	ExpiresIn     int    `json:"expires_in_seconds"`
}

type VerifyLoginRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

type VerifyLoginResponse struct {
	Success       bool   `json:"success"`
	WalletAddress string `json:"wallet_address,omitempty"`
	Message       string `json:"message,omitempty"`
}
