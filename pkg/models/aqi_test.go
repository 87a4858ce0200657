package models

import "testing"

func TestAQILevelsPartitionFullRange(t *testing.T) {
	// [0,500]を隙間なく覆うこと
	if AQILevels[0].Min != 0 {
		t.Errorf("Expected first level to start at 0, got %.0f", AQILevels[0].Min)
	}
	if AQILevels[len(AQILevels)-1].Max != 500 {
		t.Errorf("Expected last level to end at 500, got %.0f", AQILevels[len(AQILevels)-1].Max)
	}
	for i := 1; i < len(AQILevels); i++ {
		if AQILevels[i].Min != AQILevels[i-1].Max+1 {
			t.Errorf("Gap between %s (max=%.0f) and %s (min=%.0f)",
				AQILevels[i-1].Key, AQILevels[i-1].Max, AQILevels[i].Key, AQILevels[i].Min)
		}
	}
}

func TestBucketForAQI(t *testing.T) {
	cases := []struct {
		aqi      float64
		expected string
	}{
		{0, BucketGood},
		{-10, BucketGood},
		{50, BucketGood},
		{50.5, BucketGood}, // 境界間の小数は下位レンジに吸収
		{51, BucketModerate},
		{100, BucketModerate},
		{101, BucketUnhealthySensitive},
		{150, BucketUnhealthySensitive},
		{151, BucketUnhealthy},
		{200, BucketUnhealthy},
		{201, BucketVeryUnhealthy},
		{300, BucketVeryUnhealthy},
		{301, BucketHazardous},
		{500, BucketHazardous},
		{999, BucketHazardous},
	}

	for _, tc := range cases {
		if got := BucketForAQI(tc.aqi); got != tc.expected {
			t.Errorf("BucketForAQI(%.1f) = %s, expected %s", tc.aqi, got, tc.expected)
		}
	}
}

func TestBucketMidpoint(t *testing.T) {
	expected := map[string]float64{
		BucketGood:               25,
		BucketModerate:           75,
		BucketUnhealthySensitive: 125,
		BucketUnhealthy:          175,
		BucketVeryUnhealthy:      250,
		BucketHazardous:          400,
	}
	for key, midpoint := range expected {
		if got := BucketMidpoint(key); got != midpoint {
			t.Errorf("BucketMidpoint(%s) = %.0f, expected %.0f", key, got, midpoint)
		}
	}

	// 未知キーは既定値100
	if got := BucketMidpoint("unknown_bucket"); got != 100 {
		t.Errorf("BucketMidpoint(unknown) = %.0f, expected 100", got)
	}
}

func TestSeverityIndexRoundTrip(t *testing.T) {
	for i, level := range SeverityLevels {
		if level.Index() != i {
			t.Errorf("Expected %s.Index() = %d, got %d", level, i, level.Index())
		}
		if SeverityFromIndex(i) != level {
			t.Errorf("Expected SeverityFromIndex(%d) = %s, got %s", i, level, SeverityFromIndex(i))
		}
	}

	// 範囲外はクランプ、未知の重症度はmild扱い
	if SeverityFromIndex(-1) != SeverityMild {
		t.Error("Expected SeverityFromIndex(-1) to clamp to mild")
	}
	if SeverityFromIndex(10) != SeverityCritical {
		t.Error("Expected SeverityFromIndex(10) to clamp to critical")
	}
	if Severity("unknown").Index() != 0 {
		t.Error("Expected unknown severity to map to index 0")
	}
}

func TestCoordinatesRounded(t *testing.T) {
	c := Coordinates{Lat: 35.6812, Lng: 139.7671}
	r := c.Rounded()
	if r.Lat != 35.7 || r.Lng != 139.8 {
		t.Errorf("Expected (35.7, 139.8), got (%.4f, %.4f)", r.Lat, r.Lng)
	}
}
