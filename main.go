package main

import (
	"errors"

	"github.com/ytput/ytput/internal/uploader"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, uploader.ErrPublicDeclined) {
			// The user said no. Not an error worth a stack of context.
			exitOnError(errors.New("upload aborted"))
		}

		exitOnError(err)
	}
}
