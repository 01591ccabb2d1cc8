package specparse_test

import (
	"testing"

	"ci-component-catalog/internal/domain"
	"ci-component-catalog/internal/specparse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SpecInputs(t *testing.T) {
	t.Parallel()

	text := `spec:
  inputs:
    env:
      description: "Target env"
      default: "prod"
      type: string
  description: "Deploys"
---
deploy-job:
  script: echo deploy
`

	result := specparse.Parse(text)

	assert.Equal(t, "Deploys", result.Description)
	require.Len(t, result.Parameters, 1)
	param := result.Parameters[0]
	assert.Equal(t, "env", param.Name)
	assert.Equal(t, "Target env", param.Description)
	assert.Equal(t, "string", param.Type)
	assert.False(t, param.Required)
	assert.Equal(t, domain.StringVal("prod"), param.Default)
}

func TestParse_SectionBoundary(t *testing.T) {
	t.Parallel()

	// variables after the separator belong to job definitions and must never
	// leak into the parameter list
	text := `# a plain template
---
variables:
  DEPLOY_ENV: prod
  REGION: eu-west-1

job:
  script: echo hi
`

	result := specparse.Parse(text)
	assert.Empty(t, result.Parameters)
}

func TestParse_ParameterOrderAndDefaults(t *testing.T) {
	t.Parallel()

	text := `spec:
  inputs:
    replicas:
      type: number
      default: 3
    verbose:
      default: false
    name:
---
`

	result := specparse.Parse(text)
	require.Len(t, result.Parameters, 3)

	assert.Equal(t, "replicas", result.Parameters[0].Name)
	assert.Equal(t, "number", result.Parameters[0].Type)
	assert.Equal(t, domain.NumberVal(3), result.Parameters[0].Default)

	assert.Equal(t, "verbose", result.Parameters[1].Name)
	assert.Equal(t, "string", result.Parameters[1].Type) // no declared type
	assert.Equal(t, domain.BoolVal(false), result.Parameters[1].Default)

	assert.Equal(t, "name", result.Parameters[2].Name)
	assert.False(t, result.Parameters[2].Default.IsSet())
	assert.Equal(t, "Parameter: name", result.Parameters[2].Description)
}

func TestParse_RequiredProperty(t *testing.T) {
	t.Parallel()

	text := `spec:
  inputs:
    token:
      required: true
`

	result := specparse.Parse(text)
	require.Len(t, result.Parameters, 1)
	assert.True(t, result.Parameters[0].Required)
}

func TestParse_LegacyTwoSpaceIndent(t *testing.T) {
	t.Parallel()

	text := "spec:\n inputs:\n  env:\n   description: legacy layout\n"

	result := specparse.Parse(text)
	require.Len(t, result.Parameters, 1)
	assert.Equal(t, "env", result.Parameters[0].Name)
	assert.Equal(t, "legacy layout", result.Parameters[0].Description)
}

func TestParse_VariablesFallback(t *testing.T) {
	t.Parallel()

	text := `variables:
  DEPLOY_ENV: "prod"
  EMPTY:
  # comment lines are skipped
  REGION: eu-west-1
---
job:
  script: echo hi
`

	result := specparse.Parse(text)
	require.Len(t, result.Parameters, 3)

	assert.Equal(t, "DEPLOY_ENV", result.Parameters[0].Name)
	assert.Equal(t, domain.StringVal("prod"), result.Parameters[0].Default)
	assert.Equal(t, "string", result.Parameters[0].Type)
	assert.False(t, result.Parameters[0].Required)

	assert.Equal(t, "EMPTY", result.Parameters[1].Name)
	assert.False(t, result.Parameters[1].Default.IsSet())

	assert.Equal(t, "REGION", result.Parameters[2].Name)
	assert.Equal(t, domain.StringVal("eu-west-1"), result.Parameters[2].Default)
}

func TestParse_InputsWinOverVariables(t *testing.T) {
	t.Parallel()

	text := `variables:
  LEGACY: x
spec:
  inputs:
    env:
`

	result := specparse.Parse(text)
	require.Len(t, result.Parameters, 1)
	assert.Equal(t, "env", result.Parameters[0].Name)
}

func TestParse_DescriptionFallbacks(t *testing.T) {
	t.Parallel()

	t.Run("spec description wins over comment", func(t *testing.T) {
		t.Parallel()
		text := "# leading comment\nspec:\n  description: from spec\n  inputs:\n    a:\n"
		result := specparse.Parse(text)
		assert.Equal(t, "from spec", result.Description)
	})

	t.Run("leading comment used when spec has none", func(t *testing.T) {
		t.Parallel()
		text := "# Builds container images\nspec:\n  inputs:\n    a:\n"
		result := specparse.Parse(text)
		assert.Equal(t, "Builds container images", result.Description)
	})

	t.Run("platform boilerplate comments skipped", func(t *testing.T) {
		t.Parallel()
		text := "# This GitLab CI template\n# Runs the linter\nspec:\n  inputs:\n    a:\n"
		result := specparse.Parse(text)
		assert.Equal(t, "Runs the linter", result.Description)
	})

	t.Run("no description at all", func(t *testing.T) {
		t.Parallel()
		result := specparse.Parse("job:\n  script: echo\n")
		assert.Empty(t, result.Description)
		assert.Empty(t, result.Parameters)
	})
}

func TestParse_MalformedLinesSkipped(t *testing.T) {
	t.Parallel()

	text := `spec:
  inputs:
    good:
      default: ok
    ???not-a-key
    also_good:
      type: boolean
      default: true
`

	result := specparse.Parse(text)
	require.Len(t, result.Parameters, 2)
	assert.Equal(t, "good", result.Parameters[0].Name)
	assert.Equal(t, domain.StringVal("ok"), result.Parameters[0].Default)
	assert.Equal(t, "also_good", result.Parameters[1].Name)
	assert.Equal(t, domain.BoolVal(true), result.Parameters[1].Default)
}

func TestParse_EmptyAndGarbageInput(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "---", "\t\n\t\n", "just some prose"} {
		result := specparse.Parse(text)
		assert.Empty(t, result.Parameters)
	}
}

func TestParse_QuoteStyles(t *testing.T) {
	t.Parallel()

	text := `spec:
  inputs:
    single:
      default: 'quoted'
    double:
      default: "5"
`

	result := specparse.Parse(text)
	require.Len(t, result.Parameters, 2)
	assert.Equal(t, domain.StringVal("quoted"), result.Parameters[0].Default)
	// a quoted numeric stays a string
	assert.Equal(t, domain.StringVal("5"), result.Parameters[1].Default)
}
