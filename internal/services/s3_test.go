package services

import "testing"

func TestS3PublisherGetPublicURL(t *testing.T) {
	publisher := &S3Publisher{bucketName: "qatar-events-data", region: "me-south-1"}

	testCases := []struct {
		name     string
		key      string
		expected string
	}{
		{
			"plain key",
			"events/events_03_final.json",
			"https://qatar-events-data.s3.me-south-1.amazonaws.com/events/events_03_final.json",
		},
		{
			"leading slash trimmed",
			"/events/events_03_final.json",
			"https://qatar-events-data.s3.me-south-1.amazonaws.com/events/events_03_final.json",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := publisher.GetPublicURL(tc.key); got != tc.expected {
				t.Errorf("GetPublicURL(%q) = %q, expected %q", tc.key, got, tc.expected)
			}
		})
	}
}
