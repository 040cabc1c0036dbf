package main

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-engine/pkg/contracts/openapi"
)

//go:embed openapi.yaml
var apiContract []byte

func loadAPIContract() (*openapi.Validator, error) {
	return openapi.NewValidatorFromBytes(apiContract)
}

func serveAPIContract(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", apiContract)
}
