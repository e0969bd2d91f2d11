package metrics

import (
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is the build version, injectable via -ldflags.
var Version = "dev"

var appInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "gw_build_info",
	Help: "Build metadata, value always 1.",
}, []string{"version", "go_version"})

// Init records build info once at startup.
func Init() {
	appInfo.WithLabelValues(Version, runtime.Version()).Set(1)
}

// Handler 返回Prometheus metrics处理器
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)
	
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
