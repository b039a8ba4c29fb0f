package types

import "math"

const earthRadiusMeters = 6371000.0

type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// DistanceTo возвращает расстояние по большому кругу в метрах (формула гаверсинусов)
func (p Point) DistanceTo(other Point) float64 {
	lat1 := p.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - p.Latitude) * math.Pi / 180
	dLon := (other.Longitude - p.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Box прямоугольная область в градусах
type Box struct {
	MinLatitude  float64 `json:"min_lat"`
	MinLongitude float64 `json:"min_lng"`
	MaxLatitude  float64 `json:"max_lat"`
	MaxLongitude float64 `json:"max_lng"`
}

func (b Box) Contains(p Point) bool {
	return p.Latitude >= b.MinLatitude && p.Latitude <= b.MaxLatitude &&
		p.Longitude >= b.MinLongitude && p.Longitude <= b.MaxLongitude
}

func (b Box) Center() Point {
	return Point{
		Latitude:  (b.MinLatitude + b.MaxLatitude) / 2,
		Longitude: (b.MinLongitude + b.MaxLongitude) / 2,
	}
}

// CircumscribedRadius радиус окружности с центром в Center, покрывающей все углы области
func (b Box) CircumscribedRadius() float64 {
	c := b.Center()
	corners := []Point{
		{Latitude: b.MinLatitude, Longitude: b.MinLongitude},
		{Latitude: b.MinLatitude, Longitude: b.MaxLongitude},
		{Latitude: b.MaxLatitude, Longitude: b.MinLongitude},
		{Latitude: b.MaxLatitude, Longitude: b.MaxLongitude},
	}
	radius := 0.0
	for _, corner := range corners {
		if d := c.DistanceTo(corner); d > radius {
			radius = d
		}
	}
	return radius
}
