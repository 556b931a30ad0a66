package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/veilscan/fogstore/internal/config"
	"github.com/veilscan/fogstore/internal/logging"
)

func NewRouter(api *ApiHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: true,
	}))

	router.GET("/info", api.GetInfo)
	router.GET("/status/:ingresskey", ParseIngressKeyMiddleware, api.GetStatus)
	router.GET("/block-range/:ingresskey", ParseIngressKeyMiddleware, api.GetBlockRange)
	router.GET("/rng-records/:ingresskey", ParseIngressKeyMiddleware, api.GetRngRecords)
	router.GET("/missed-ranges/:ingresskey", ParseIngressKeyMiddleware, api.GetMissedRanges)

	router.POST("/outputs", api.GetOutputs)

	return router
}

func RunServer(api *ApiHandler) {
	router := NewRouter(api)
	if err := router.Run(config.HTTPHost); err != nil {
		logging.L.Err(err).Msg("could not run server")
	}
}
