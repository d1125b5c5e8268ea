package dikernel_test

import (
	"testing"

	"github.com/centraunit/dikernel"
	"github.com/centraunit/dikernel/mock"
)

func BenchmarkResolveSingleton(b *testing.B) {
	k := dikernel.New()
	defer k.Dispose()
	if err := dikernel.Register[mock.Database](k, mock.NewMockDB); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := dikernel.Resolve[mock.Database](k); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResolveTransient(b *testing.B) {
	k := dikernel.New()
	defer k.Dispose()
	if err := dikernel.Register[mock.Database](k, mock.NewMockDB); err != nil {
		b.Fatal(err)
	}
	if err := dikernel.Register[mock.Cache](k, mock.NewMockCache, dikernel.Transient()); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, err := dikernel.Resolve[mock.Cache](k)
		if err != nil {
			b.Fatal(err)
		}
		if err := k.Release(c); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResolvePooled(b *testing.B) {
	k := dikernel.New()
	defer k.Dispose()
	if err := dikernel.Register[*mock.Connection](k, mock.NewConnection, dikernel.PooledWithSize(2, 8)); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c, err := dikernel.Resolve[*mock.Connection](k)
			if err != nil {
				b.Fatal(err)
			}
			if err := k.Release(c); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkResolveIntercepted(b *testing.B) {
	k := dikernel.New()
	defer k.Dispose()
	if err := dikernel.Register[*mock.RecordingInterceptor](k, mock.NewRecordingInterceptor, dikernel.Named("recorder")); err != nil {
		b.Fatal(err)
	}
	if err := dikernel.Register[mock.Greeter](k, mock.NewEnglishGreeter,
		dikernel.Transient(),
		dikernel.Interceptors(dikernel.InterceptorNamed("recorder")),
		dikernel.ProxiedBy(mock.NewGreeterProxy),
	); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g, err := dikernel.Resolve[mock.Greeter](k)
		if err != nil {
			b.Fatal(err)
		}
		if err := k.Release(g); err != nil {
			b.Fatal(err)
		}
	}
}
