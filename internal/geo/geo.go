// internal/geo/geo.go
package geo

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	// EarthRadiusMeters is the sphere radius used by DistanceMeters.
	EarthRadiusMeters = 6371000.0

	// MetersPerDegree approximates the length of one degree of latitude.
	MetersPerDegree = 111320.0

	// DefaultMinDistance keeps a sampled point from landing on its center.
	DefaultMinDistance = 15.0

	// DefaultMaxAttempts caps resampling in RandomPointConstrained.
	DefaultMaxAttempts = 1000
)

// ErrInfeasible is returned when no sample satisfies the containing-circle constraint.
var ErrInfeasible = errors.New("no point satisfies the containing radius")

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// DistanceMeters returns the haversine great-circle distance between two points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := lat1 * math.Pi / 180.0
	φ2 := lat2 * math.Pi / 180.0
	dφ := (lat2 - lat1) * math.Pi / 180.0
	dλ := (lon2 - lon1) * math.Pi / 180.0

	sinDφ := math.Sin(dφ / 2)
	sinDλ := math.Sin(dλ / 2)

	a := sinDφ*sinDφ + math.Cos(φ1)*math.Cos(φ2)*sinDλ*sinDλ
	if a > 1 {
		a = 1
	}
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Distance is DistanceMeters over two Points.
func Distance(a, b Point) float64 {
	return DistanceMeters(a.Lat, a.Lon, b.Lat, b.Lon)
}

// Within reports whether p lies inside the circle of the given radius around center.
// A nil position is never within range.
func Within(p *Point, center Point, radiusMeters float64) bool {
	if p == nil {
		return false
	}
	return Distance(*p, center) <= radiusMeters
}

// Sampler draws jittered coordinates. It is safe for concurrent use.
type Sampler struct {
	MinDistance float64
	MaxAttempts int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler returns a Sampler seeded with seed. Tests pass a fixed seed for determinism.
func NewSampler(seed int64) *Sampler {
	return &Sampler{
		MinDistance: DefaultMinDistance,
		MaxAttempts: DefaultMaxAttempts,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// NewTimeSeededSampler returns a Sampler seeded from the wall clock.
func NewTimeSeededSampler() *Sampler {
	return NewSampler(time.Now().UnixNano())
}

func (s *Sampler) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Sampler) minDistance() float64 {
	if s.MinDistance <= 0 {
		return DefaultMinDistance
	}
	return s.MinDistance
}

func (s *Sampler) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return s.MaxAttempts
}

// annulusCandidate converts a bearing and a distance to a coordinate using the
// flat-earth approximation, correcting longitude by cos(latitude).
func annulusCandidate(center Point, bearing, meters float64) Point {
	deg := meters / MetersPerDegree
	dLat := deg * math.Cos(bearing)
	dLon := deg * math.Sin(bearing) / math.Cos(center.Lat*math.Pi/180.0)
	return Point{Lat: center.Lat + dLat, Lon: center.Lon + dLon}
}

// RandomPointInAnnulus samples a uniform bearing and a uniform radius in
// [MinDistance, radiusMeters]. The returned point is always between MinDistance
// and radiusMeters from center by haversine distance. If radiusMeters is below
// MinDistance the point lands at MinDistance.
func (s *Sampler) RandomPointInAnnulus(center Point, radiusMeters float64) Point {
	minD := s.minDistance()
	maxD := radiusMeters
	if maxD < minD {
		maxD = minD
	}

	for i := 0; i < s.maxAttempts(); i++ {
		bearing := s.float64() * 2 * math.Pi
		r := minD + s.float64()*(maxD-minD)
		p := annulusCandidate(center, bearing, r)
		d := Distance(center, p)
		if d >= minD && d <= maxD {
			return p
		}
	}

	// Due north along the meridian the degree conversion is exact.
	dLat := (minD + maxD) / 2 / EarthRadiusMeters * 180.0 / math.Pi
	return Point{Lat: center.Lat + dLat, Lon: center.Lon}
}

// RandomPointConstrained resamples RandomPointInAnnulus around center until the
// point's distance from start plus radiusMeters does not exceed startRadius, so
// the whole jitter circle stays inside the play area. It gives up with
// ErrInfeasible after MaxAttempts samples.
func (s *Sampler) RandomPointConstrained(center Point, radiusMeters float64, start Point, startRadius float64) (Point, error) {
	if radiusMeters > startRadius {
		return Point{}, ErrInfeasible
	}
	for i := 0; i < s.maxAttempts(); i++ {
		p := s.RandomPointInAnnulus(center, radiusMeters)
		if Distance(p, start)+radiusMeters <= startRadius {
			return p, nil
		}
	}
	return Point{}, ErrInfeasible
}

var defaultSampler = NewTimeSeededSampler()

// RandomPointInAnnulus samples around (centerLat, centerLon) with the package sampler.
func RandomPointInAnnulus(centerLat, centerLon, radiusMeters float64) Point {
	return defaultSampler.RandomPointInAnnulus(Point{Lat: centerLat, Lon: centerLon}, radiusMeters)
}

// RandomPointConstrained samples around (centerLat, centerLon) with the package sampler,
// keeping the jitter circle inside the circle of startRadius around (startLat, startLon).
func RandomPointConstrained(centerLat, centerLon, radiusMeters, startLat, startLon, startRadius float64) (Point, error) {
	return defaultSampler.RandomPointConstrained(
		Point{Lat: centerLat, Lon: centerLon}, radiusMeters,
		Point{Lat: startLat, Lon: startLon}, startRadius,
	)
}
