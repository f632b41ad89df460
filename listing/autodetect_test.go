package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileConditionSimple(t *testing.T) {
	cond, err := CompileCondition(`welcome_contains("pure-ftpd")`)
	require.NoError(t, err)

	assert.True(t, cond("220 Pure-FTPd ready", ""))
	assert.False(t, cond("220 vsFTPd ready", ""))
}

func TestCompileConditionAndOrNot(t *testing.T) {
	cond, err := CompileCondition(`welcome_contains("vsftpd") and not syst_contains("windows")`)
	require.NoError(t, err)

	assert.True(t, cond("220 (vsFTPd 3.0.3)", "215 UNIX Type: L8"))
	assert.False(t, cond("220 (vsFTPd 3.0.3)", "215 Windows_NT"))
	assert.False(t, cond("220 ProFTPD", "215 UNIX Type: L8"))

	cond2, err := CompileCondition(`welcome_contains("a") or welcome_contains("b")`)
	require.NoError(t, err)
	assert.True(t, cond2("only a", ""))
	assert.True(t, cond2("only b", ""))
	assert.False(t, cond2("neither", ""))
}

func TestCompileConditionParensAndRegex(t *testing.T) {
	cond, err := CompileCondition(`(reg_exp_in_syst("(?i)unix") and not reg_exp_in_welcome("(?i)windows"))`)
	require.NoError(t, err)

	assert.True(t, cond("220 ready", "215 UNIX Type: L8"))
	assert.False(t, cond("220 Windows NT ready", "215 UNIX Type: L8"))
}

func TestCompileConditionRejectsGarbage(t *testing.T) {
	_, err := CompileCondition(`welcome_contains(`)
	assert.Error(t, err)
}

func TestSelectServerType(t *testing.T) {
	unixCond, err := CompileCondition(`syst_contains("UNIX")`)
	require.NoError(t, err)

	genericRules := compileOrFail(t, unixRules)

	types := []ServerType{
		{Name: "unix", Condition: unixCond, Rules: genericRules},
	}

	today := time.Now()
	st, listing, err := Select(types, "220 ready", "215 UNIX Type: L8", "-rw-r--r-- 1 bob staff 10 Jan 15 10:30 a.txt", today)
	require.NoError(t, err)
	assert.Equal(t, "unix", st.Name)
	assert.Len(t, listing.Items, 1)
}
