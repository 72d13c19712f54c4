package reactor_test

import (
	"context"
	"fmt"

	"github.com/joeycumines/go-reactor"
)

// A repeating timer cancels itself after three firings; the loop stops on
// its own once nothing remains to wait for.
func Example() {
	loop, err := reactor.New()
	if err != nil {
		panic(err)
	}

	count := 0
	var id reactor.TimerID
	id, err = loop.CreateTimer(func() error {
		count++
		fmt.Println("tick", count)
		if count == 3 {
			loop.DeleteTimer(id)
		}
		return nil
	}, 1, false)
	if err != nil {
		panic(err)
	}

	if err := loop.Run(context.Background()); err != nil {
		panic(err)
	}

	// Output:
	// tick 1
	// tick 2
	// tick 3
}
