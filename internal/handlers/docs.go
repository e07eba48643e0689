package handlers

import (
	"encoding/json"
	"net/http"

	"reliability-platform/internal/services"
)

type object = map[string]interface{}

func queryParam(name, description, typ string, extra object) object {
	schema := object{"type": typ}
	for k, v := range extra {
		schema[k] = v
	}
	return object{"name": name, "in": "query", "description": description, "required": false, "schema": schema}
}

func pathName() object {
	return object{
		"name":        "name",
		"in":          "path",
		"required":    true,
		"description": "Canonical developer name; hyphens may stand for spaces, partial names resolve when unique",
		"schema":      object{"type": "string"},
	}
}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func jsonResponse(description string, schema object) object {
	return object{
		"description": description,
		"content":     object{"application/json": object{"schema": schema}},
	}
}

func errorResponses(codes ...string) object {
	descriptions := map[string]string{
		"400": "Invalid parameter",
		"401": "Missing or invalid API key",
		"404": "Developer not found",
		"409": "Partial name matches several developers",
	}
	out := object{}
	for _, c := range codes {
		out[c] = jsonResponse(descriptions[c], ref("Error"))
	}
	return out
}

func operation(summary string, params []object, ok object, errs ...string) object {
	responses := errorResponses(errs...)
	responses["200"] = ok
	op := object{"summary": summary, "responses": responses, "security": []object{{"ApiKeyAuth": []string{}}}}
	if len(params) > 0 {
		op["parameters"] = params
	}
	return op
}

func pagingParams(defaultPerPage, maxPerPage int) []object {
	return []object{
		queryParam("page", "Page number", "integer", object{"default": 1, "minimum": 1}),
		queryParam("per_page", "Records per page", "integer", object{"default": defaultPerPage, "minimum": 1, "maximum": maxPerPage}),
	}
}

func schemas() object {
	num := object{"type": "number"}
	nullableNum := object{"type": "number", "nullable": true}
	integer := object{"type": "integer"}
	str := object{"type": "string"}
	strList := object{"type": "array", "items": str}
	date := object{"type": "string", "format": "date", "nullable": true}

	return object{
		"Error": object{"type": "object", "properties": object{
			"error": str, "message": str, "code": integer, "candidates": strList,
		}},
		"PageMeta": object{"type": "object", "properties": object{
			"total": integer, "page": integer, "per_page": integer, "pages": integer,
		}},
		"ScoreBreakdown": object{"type": "object", "properties": object{
			"completion_rate": num, "completion_rate_score": num,
			"avg_timeline_days": nullableNum, "timeline_score": num,
			"project_volume": integer, "volume_score": num,
			"regional_breadth": integer, "breadth_score": num,
			"tech_diversity": integer, "diversity_score": num,
			"active_pipeline": integer, "pipeline_score": num,
			"track_record_years": num, "depth_score": num,
		}},
		"Developer": object{"type": "object", "properties": object{
			"name": str, "parent_company": str,
			"total_projects": integer, "operational": integer, "withdrawn": integer,
			"active": integer, "under_construction": integer, "suspended": integer,
			"regions": strList, "num_regions": integer,
			"fuel_types": strList, "num_fuel_types": integer, "states": strList,
			"total_capacity_mw": num, "operational_capacity_mw": num, "avg_capacity_mw": num,
			"first_project_date": date, "latest_project_date": date,
			"avg_timeline_days": nullableNum, "years_since_first": num,
			"completion_rate": nullableNum,
			"score":           object{"type": "number", "nullable": true, "description": "Null when fewer than 5 projects have resolved"},
			"score_breakdown": object{"allOf": []object{ref("ScoreBreakdown")}, "nullable": true},
			"resolution":      object{"type": "string", "enum": []string{"exact", "fuzzy"}},
			"rank":            integer,
		}},
		"Project": object{"type": "object", "properties": object{
			"queue_id": str, "region": str, "name": str, "capacity_mw": nullableNum,
			"fuel_type": str, "status": str, "state": str, "county": str, "poi": str,
			"queue_date": str, "cod": str,
		}},
		"Stats": object{"type": "object", "properties": object{
			"total_developers": integer, "scored_developers": integer, "total_projects": integer,
			"avg_score": nullableNum, "median_score": nullableNum,
			"top_regions":        object{"type": "object", "additionalProperties": integer},
			"top_fuel_types":     object{"type": "object", "additionalProperties": integer},
			"score_distribution": object{"type": "object", "additionalProperties": integer},
			"last_updated":       date,
		}},
	}
}

func page(item string) object {
	return object{"type": "object", "properties": object{
		"data": object{"type": "array", "items": ref(item)},
		"meta": ref("PageMeta"),
	}}
}

// OpenAPIDocument builds the OpenAPI 3.0 description of the API
func OpenAPIDocument() object {
	listParams := append([]object{
		queryParam("search", "Case-insensitive substring of the developer name", "string", nil),
		queryParam("region", "Region the developer is active in (substring)", "string", nil),
		queryParam("fuel_type", "Fuel type in the developer's portfolio (substring)", "string", nil),
		queryParam("min_projects", "Minimum total projects", "integer", object{"default": 1, "minimum": 1}),
		queryParam("sort_by", "Sort order", "string", object{
			"default": "score",
			"enum":    []string{"score", "name", "total_projects", "operational", "completion_rate"},
		}),
	}, pagingParams(services.DefaultPerPage, services.MaxPerPage)...)

	rankingParams := append([]object{
		queryParam("sort_by", "Sort order", "string", object{
			"default": "score",
			"enum":    []string{"score", "completion_rate", "total_projects", "operational"},
		}),
	}, pagingParams(services.DefaultPerPage, services.MaxPerPage)...)

	return object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "Developer Reliability API",
			"description": "Reliability scores for interconnection queue developers, computed from queue outcomes",
			"version":     "1.0.0",
		},
		"components": object{
			"schemas": schemas(),
			"securitySchemes": object{
				"ApiKeyAuth": object{"type": "apiKey", "in": "header", "name": APIKeyHeader},
			},
		},
		"paths": object{
			"/v1/developers": object{"get": operation("List developers", listParams,
				jsonResponse("A page of developers", page("Developer")), "400", "401")},
			"/v1/developers/rankings": object{"get": operation("Rank scored developers", rankingParams,
				jsonResponse("A page of ranked developers", page("Developer")), "400", "401")},
			"/v1/developers/compare": object{"get": operation("Compare developers",
				[]object{queryParam("names", "Comma separated names, 2 to 10", "string", nil)},
				jsonResponse("Resolved developers and names that did not resolve", object{
					"type": "object", "properties": object{
						"data":      object{"type": "array", "items": ref("Developer")},
						"not_found": object{"type": "array", "items": object{"type": "string"}},
						"ambiguous": object{"type": "object", "additionalProperties": object{"type": "array", "items": object{"type": "string"}}},
					},
				}), "400", "401", "404")},
			"/v1/developers/{name}": object{"get": operation("Developer detail", []object{pathName()},
				jsonResponse("The developer", object{"type": "object", "properties": object{"data": ref("Developer")}}),
				"401", "404", "409")},
			"/v1/developers/{name}/projects": object{"get": operation("Developer projects, newest first",
				append([]object{pathName()}, pagingParams(services.DefaultProjectsPerPage, services.MaxProjectsPerPage)...),
				jsonResponse("A page of projects", page("Project")), "400", "401", "404", "409")},
			"/v1/stats": object{"get": operation("Corpus statistics", nil,
				jsonResponse("Statistics", ref("Stats")), "401")},
			"/health": object{"get": object{
				"summary": "Health check",
				"responses": object{
					"200": jsonResponse("API and database are up", object{"type": "object"}),
					"503": jsonResponse("Database unreachable", object{"type": "object"}),
				},
			}},
			"/metrics": object{"get": object{
				"summary": "Prometheus metrics",
				"responses": object{"200": object{
					"description": "Prometheus metrics in text format",
					"content":     object{"text/plain": object{"schema": object{"type": "string"}}},
				}},
			}},
		},
	}
}

// OpenAPISpec serves the OpenAPI document
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(OpenAPIDocument())
}
