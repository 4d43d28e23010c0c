// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		status   string
		result   string
		expected Status
	}{
		"completed succeeded":           {status: "completed", result: "succeeded", expected: StatusSucceeded},
		"completed failed":              {status: "completed", result: "failed", expected: StatusFailed},
		"completed canceled":            {status: "completed", result: "canceled", expected: StatusCanceled},
		"completed bogus":               {status: "completed", result: "bogus", expected: StatusUnknown},
		"completed partially":           {status: "completed", result: "partiallySucceeded", expected: StatusUnknown},
		"empty pair":                    {expected: StatusUnknown},
		"in progress":                   {status: "inProgress", expected: StatusRunning},
		"not started":                   {status: "notStarted", result: "none", expected: StatusPending},
		"queued":                        {status: "Queued", expected: StatusPending},
		"release environment succeeded": {status: "succeeded", expected: StatusSucceeded},
		"release environment rejected":  {status: "rejected", expected: StatusFailed},
		"release environment canceled":  {status: "canceled", expected: StatusCanceled},
		"unknown status":                {status: "exploded", result: "succeeded", expected: StatusUnknown},
	}

	for testName, test := range tests {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, test.expected, ClassifyStatus(test.status, test.result))
		})
	}
}
