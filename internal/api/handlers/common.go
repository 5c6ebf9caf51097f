package handlers

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"logitrack/pkg/cache"
	"logitrack/pkg/utils"
)

// MaxLimit caps user supplied ?limit= values.
const MaxLimit = 500

var validate = validator.New()

// bindJSON decodes the body into req and runs its validate tags. It writes
// the error response itself and reports whether the handler may continue.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := validate.Struct(req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return false
	}
	return true
}

// bindModel decodes the body only; the repository validates entities so the
// field messages come back through the store error.
func bindModel(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	return true
}

// single writes a by-id query. Absent rows are a 404, not a null payload.
func single[T any](c *gin.Context, name string, res cache.Result[*T]) {
	if res.Err == nil && res.Data == nil {
		utils.ErrorResponse(c, http.StatusNotFound, name+" not found", nil)
		return
	}
	utils.QueryResponse(c, name, res)
}

func mutated(c *gin.Context, status int, message string, v interface{}, err error, failure string) {
	if err != nil {
		utils.FailureResponse(c, failure, err)
		return
	}
	utils.SuccessResponse(c, status, message, v)
}

// ParseLimit reads ?limit=, falling back to def and clamping to MaxLimit.
func ParseLimit(c *gin.Context, def int) int {
	return parsePositive(c.Query("limit"), def, MaxLimit)
}

func parsePositive(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// statuses parses ?status=a,b into a sorted, de-duplicated filter.
func statuses[S ~string](c *gin.Context) []S {
	raw := c.Query("status")
	if raw == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []S
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, S(part))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func flag(c *gin.Context, name string) bool {
	b, _ := strconv.ParseBool(c.Query(name))
	return b
}
