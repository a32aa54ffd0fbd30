package reactive

import "testing"

func BenchmarkSignalSet(b *testing.B) {
	rt := newTestRuntime(b)
	_, set := CreateSignal(rt.Root(), 0)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set.Set(i)
	}
}

func BenchmarkSignalSetWithEffect(b *testing.B) {
	rt := newTestRuntime(b)
	count, set := CreateSignal(rt.Root(), 0)
	CreateEffect(rt.Root(), func() Cleanup {
		_ = count.Get()
		return nil
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set.Set(i)
	}
}

func BenchmarkMemoChain(b *testing.B) {
	rt := newTestRuntime(b)
	src, set := CreateSignal(rt.Root(), 0)

	head := src
	for i := 0; i < 100; i++ {
		prev := head
		head = CreateMemo(rt.Root(), func() int { return prev.Get() + 1 })
	}
	CreateEffect(rt.Root(), func() Cleanup {
		_ = head.Get()
		return nil
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set.Set(i)
	}
}

func BenchmarkFanOut(b *testing.B) {
	rt := newTestRuntime(b)
	src, set := CreateSignal(rt.Root(), 0)
	for i := 0; i < 1000; i++ {
		CreateEffect(rt.Root(), func() Cleanup {
			_ = src.Get()
			return nil
		})
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set.Set(i)
	}
}

func BenchmarkScopeCreateDispose(b *testing.B) {
	rt := newTestRuntime(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := rt.CreateScope(rt.Root())
		count, _ := CreateSignal(s, i)
		CreateEffect(s, func() Cleanup {
			_ = count.Get()
			return nil
		})
		s.Dispose()
	}
}
