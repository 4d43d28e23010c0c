// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package azuredevops implements source.DevOps on top of the Azure DevOps REST API.
// Connection and authentication are read from the AZURE_DEVOPS_* environment variables.
package azuredevops
