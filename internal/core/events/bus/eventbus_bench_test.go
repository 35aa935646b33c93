package bus

import (
	"strconv"
	"testing"
)

func BenchmarkPublish(b *testing.B) {
	for _, subs := range []int{1, 16, 256} {
		b.Run("subs="+strconv.Itoa(subs), func(b *testing.B) {
			bus := New()
			var c int
			for i := 0; i < subs; i++ {
				_, _ = bus.Subscribe(WorldStepped, func(Event) error { c++; return nil })
			}
			e := NewEvent(WorldStepped, "bench", 0, nil)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = bus.Publish(e)
			}
		})
	}
}
