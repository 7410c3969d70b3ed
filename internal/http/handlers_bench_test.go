package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"
)

// BenchmarkHandler_ListWorkouts benchmarks rendering a list of fifty cards.
func BenchmarkHandler_ListWorkouts(b *testing.B) {
	env := newTestEnv(b, envOptions{})
	for i := 0; i < 50; i++ {
		env.do("POST", "/workouts", fmt.Sprintf(`{"type":"running","lat":52.%d,"lng":13.4,"distance":5,"duration":30,"cadence":170}`, i))
	}
	env.waitEnrichment(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest("GET", "/workouts", nil))
	}
}

// BenchmarkHandler_CreateWorkout_Invalid benchmarks the domain rejection path, which
// never touches the store.
func BenchmarkHandler_CreateWorkout_Invalid(b *testing.B) {
	env := newTestEnv(b, envOptions{})
	body := `{"type":"running","lat":52.52,"lng":13.405,"distance":-5,"duration":30,"cadence":170}`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest("POST", "/workouts", strings.NewReader(body)))
		if w.Code != http.StatusBadRequest {
			b.Fatalf("status = %d", w.Code)
		}
	}
}

// BenchmarkHandler_RateLimited benchmarks rate limiting overhead once the bucket is empty.
func BenchmarkHandler_RateLimited(b *testing.B) {
	env := newTestEnv(b, envOptions{
		routerOpts: RouterOptions{Limiter: rate.NewLimiter(rate.Limit(0.001), 1)},
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest("GET", "/workouts", nil))
	}
}
