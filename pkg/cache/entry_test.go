package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_Expiry(t *testing.T) {
	tests := []struct {
		name        string
		expires     time.Time
		wantExpired bool
		wantMinTTL  time.Duration
		wantMaxTTL  time.Duration
	}{
		{
			name:        "expired entry",
			expires:     time.Now().Add(-1 * time.Hour),
			wantExpired: true,
		},
		{
			name:        "one hour remaining",
			expires:     time.Now().Add(1 * time.Hour),
			wantExpired: false,
			wantMinTTL:  59 * time.Minute,
			wantMaxTTL:  61 * time.Minute,
		},
		{
			name:        "just expired",
			expires:     time.Now().Add(-1 * time.Second),
			wantExpired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{
				Body:    `{"response":{"numFound":0,"docs":[]}}`,
				Expires: tt.expires,
			}
			if got := entry.IsExpired(); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}
			ttl := entry.TTL()
			if ttl < tt.wantMinTTL || ttl > tt.wantMaxTTL {
				t.Errorf("TTL() = %v, want between %v and %v", ttl, tt.wantMinTTL, tt.wantMaxTTL)
			}
		})
	}
}
