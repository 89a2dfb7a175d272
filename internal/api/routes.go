package api

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)

	ws.
		Path("/api/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	// Health endpoint
	ws.
		Route(ws.GET("health").
			To(handler.Health).
			Doc("Health check").
			Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
			Writes(HealthResponse{}).
			Returns(200, "OK", HealthResponse{}))

	ws.
		Route(ws.GET("/rails").
			To(handler.ListRails).
			Doc("List configured rails").
			Metadata(restfulspec.KeyOpenAPITags, []string{"rails"}).
			Writes(RailsResponse{}).
			Returns(200, "OK", RailsResponse{}))

	ws.
		Route(ws.POST("/guard").
			To(handler.Guard).
			Doc("Run a prompt through input rails, the LLM and output rails").
			Metadata(restfulspec.KeyOpenAPITags, []string{"guard"}).
			Reads(models.GuardRequest{}).
			Writes(models.GuardrailResult{}).
			Returns(200, "OK", models.GuardrailResult{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(502, "LLM Unavailable", middleware.ErrorResponse{}).
			Returns(504, "LLM Timeout", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/check/input").
			To(handler.CheckInput).
			Doc("Run text through the input rails only").
			Metadata(restfulspec.KeyOpenAPITags, []string{"check"}).
			Reads(models.TextRequest{}).
			Writes(models.GuardrailResult{}).
			Returns(200, "OK", models.GuardrailResult{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/check/output").
			To(handler.CheckOutput).
			Doc("Run text through the output rails only").
			Metadata(restfulspec.KeyOpenAPITags, []string{"check"}).
			Reads(models.TextRequest{}).
			Writes(models.GuardrailResult{}).
			Returns(200, "OK", models.GuardrailResult{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/rails/{rail_name}/check").
			To(handler.CheckRail).
			Doc("Evaluate text with a single rail").
			Metadata(restfulspec.KeyOpenAPITags, []string{"check"}).
			Param(ws.PathParameter("rail_name", "Rail name as defined in rails.yaml").DataType("string")).
			Reads(models.TextRequest{}).
			Writes(models.GuardrailResult{}).
			Returns(200, "OK", models.GuardrailResult{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(404, "Rail Not Found", middleware.ErrorResponse{}))

	container.Add(ws)
}

// RegisterDocs serves the OpenAPI document of every registered web service
// at /apidocs.json. Call it after RegisterRoutes.
func RegisterDocs(container *restful.Container) {
	config := restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
		PostBuildSwaggerObjectHandler: func(swo *spec.Swagger) {
			swo.Info = &spec.Info{
				InfoProps: spec.InfoProps{
					Title:   "Guard Agent API",
					Version: Version,
				},
			}
		},
	}
	container.Add(restfulspec.NewOpenAPIService(config))
}

// RegisterMetrics exposes the gatherer at /metrics.
func RegisterMetrics(container *restful.Container, gatherer prometheus.Gatherer) {
	container.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
