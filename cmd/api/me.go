package main

import (
	"net/http"

	"call-inbox/internal/auth"

	"github.com/gin-gonic/gin"
)

func whoAmI(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}
