package handlers

import (
	"medsoc-cms/pkg/models"
	"medsoc-cms/pkg/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

const identityKey = "identity"

// Handler bundles the dependencies of every route.
type Handler struct {
	Articles  services.ArticleStore
	Images    services.ImageStore
	Uploader  *services.Uploader
	Auth      *services.Authenticator
	Site      models.SiteConfig
	OauthConf *oauth2.Config
}

// CurrentIdentity returns the identity attached by AuthRequired, or nil.
func CurrentIdentity(c *gin.Context) *services.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*services.Identity)
	return id
}
