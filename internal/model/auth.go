package model

import "github.com/golang-jwt/jwt/v5"

// AdminClaims are JWT claims for node administration
type AdminClaims struct {
	AdminID string `json:"adminId"`
	jwt.RegisteredClaims
}

// MinerClaims are JWT claims for miner tokens
type MinerClaims struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	jwt.RegisteredClaims
}

// LoginRequest is the request body for admin login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful admin login
type LoginResponse struct {
	Token   string `json:"token"`
	AdminID string `json:"adminId"`
}

// JoinRequest is the request body for miner registration
type JoinRequest struct {
	Nickname string `json:"nickname"`
}

// JoinResponse is returned when a miner registers
type JoinResponse struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}
