package view

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitecheck/sitecheck/internal/core"
)

func sample() []*core.CheckResult {
	at := time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)
	return []*core.CheckResult{
		{Domain: "alpha.com", Status: core.StatusCode(200), Message: "OK", ResponseTimeSeconds: core.Seconds(0.4), Category: core.CategoryActive, CheckedAt: at},
		{Domain: "Beta.org", Status: core.StatusCode(404), Message: "Not Found", ResponseTimeSeconds: core.Seconds(0.2), Category: core.CategoryError, CheckedAt: at},
		{Domain: "gamma.net", Status: core.StatusCode(503), Message: "Service Unavailable, try later", Category: core.CategoryError, CheckedAt: at},
		{Domain: "delta.io", Status: core.StatusCode(301), Message: "Moved", ResponseTimeSeconds: core.Seconds(0.1), Category: core.CategoryRedirect, CheckedAt: at},
		{Domain: "omega.dev", Status: core.StatusError(), Message: "Connection Failed", Category: core.CategoryConnectionError, CheckedAt: at},
	}
}

func domains(rows []*core.CheckResult) []core.Domain {
	out := make([]core.Domain, len(rows))
	for i, r := range rows {
		out[i] = r.Domain
	}
	return out
}

func TestApplyServerErrorFilter(t *testing.T) {
	results := []*core.CheckResult{
		{Domain: "a.com", Status: core.StatusCode(200)},
		{Domain: "b.com", Status: core.StatusCode(404)},
		{Domain: "c.com", Status: core.StatusCode(503)},
	}

	page := Apply(results, ViewState{StatusFilter: ClassServerError})
	require.Equal(t, []core.Domain{"c.com"}, domains(page.Rows))
	require.Equal(t, 3, page.Total)
	require.Equal(t, 1, page.Filtered)
}

func TestApplyStatusClasses(t *testing.T) {
	tests := map[StatusClass][]core.Domain{
		ClassAll:             {"alpha.com", "Beta.org", "gamma.net", "delta.io", "omega.dev"},
		ClassSuccess:         {"alpha.com"},
		ClassRedirect:        {"delta.io"},
		ClassClientError:     {"Beta.org"},
		ClassServerError:     {"gamma.net"},
		ClassConnectionError: {"omega.dev"},
	}
	for class, want := range tests {
		t.Run(string(class), func(t *testing.T) {
			require.Equal(t, want, domains(Apply(sample(), ViewState{StatusFilter: class}).Rows))
		})
	}
}

func TestApplySearchIsCaseInsensitiveOnDomainOrMessage(t *testing.T) {
	page := Apply(sample(), ViewState{Search: "BETA"})
	require.Equal(t, []core.Domain{"Beta.org"}, domains(page.Rows))

	page = Apply(sample(), ViewState{Search: "unavailable"})
	require.Equal(t, []core.Domain{"gamma.net"}, domains(page.Rows))
}

func TestApplyCombinesFilters(t *testing.T) {
	state := ViewState{Search: "a", Category: core.CategoryError}
	require.Equal(t, []core.Domain{"Beta.org", "gamma.net"}, domains(Apply(sample(), state).Rows))

	state = state.WithStatusFilter(ClassClientError)
	require.Equal(t, []core.Domain{"Beta.org"}, domains(Apply(sample(), state).Rows))
}

func TestSortResponseTimeTreatsMissingAsZero(t *testing.T) {
	results := []*core.CheckResult{
		{Domain: "slow.com", ResponseTimeSeconds: core.Seconds(1.5)},
		{Domain: "none.com"},
		{Domain: "fast.com", ResponseTimeSeconds: core.Seconds(0.3)},
	}

	page := Apply(results, ViewState{SortKey: SortResponseTime})
	require.Equal(t, []core.Domain{"none.com", "fast.com", "slow.com"}, domains(page.Rows))

	page = Apply(results, ViewState{SortKey: SortResponseTime, Descending: true})
	require.Equal(t, []core.Domain{"slow.com", "fast.com", "none.com"}, domains(page.Rows))

	require.Equal(t, []core.Domain{"slow.com", "none.com", "fast.com"}, domains(results))
}

func TestSortIsStable(t *testing.T) {
	page := Apply(sample(), ViewState{SortKey: SortCategory})
	require.Equal(t, []core.Domain{"omega.dev", "alpha.com", "Beta.org", "gamma.net", "delta.io"}, domains(page.Rows))

	page = Apply(sample(), ViewState{SortKey: SortStatus})
	require.Equal(t, []core.Domain{"omega.dev", "alpha.com", "delta.io", "Beta.org", "gamma.net"}, domains(page.Rows))
}

func TestPaginationClamps(t *testing.T) {
	results := sample()

	page := Apply(results, ViewState{PageSize: 2, Page: 2})
	require.Equal(t, []core.Domain{"gamma.net", "delta.io"}, domains(page.Rows))
	require.Equal(t, 3, page.PageCount)

	page = Apply(results, ViewState{PageSize: 2, Page: 99})
	require.Equal(t, 3, page.Page)
	require.Equal(t, []core.Domain{"omega.dev"}, domains(page.Rows))

	page = Apply(results, ViewState{PageSize: 2, Page: -4})
	require.Equal(t, 1, page.Page)

	page = Apply(results, ViewState{Search: "nothing-matches", Page: 3})
	require.Equal(t, 1, page.Page)
	require.Equal(t, 0, page.PageCount)
	require.Empty(t, page.Rows)
	require.Equal(t, DefaultPageSize, page.PageSize)
}

func TestViewStateTransitionsAreCopies(t *testing.T) {
	base := ViewState{Page: 3}
	next := base.WithSearch("x").WithSort(SortDomain)
	require.Equal(t, 3, base.Page)
	require.Equal(t, "", base.Search)
	require.Equal(t, 1, next.Page)
	require.False(t, next.Descending)
	require.True(t, next.WithSort(SortDomain).Descending)

	selected := base.WithSelected("alpha.com", true).WithSelected("omega.dev", true)
	require.Nil(t, base.Selected)
	require.Equal(t, []core.Domain{"alpha.com", "omega.dev"}, selected.SelectedDomains(sample()))
	require.Equal(t, []core.Domain{"omega.dev"}, selected.WithSelected("alpha.com", false).SelectedDomains(sample()))
}

func TestParseStatusClassAndSortKey(t *testing.T) {
	c, err := ParseStatusClass("Server-Error")
	require.NoError(t, err)
	require.Equal(t, ClassServerError, c)
	_, err = ParseStatusClass("teapot")
	require.Error(t, err)

	k, err := ParseSortKey("time")
	require.NoError(t, err)
	require.Equal(t, SortResponseTime, k)
	_, err = ParseSortKey("colour")
	require.Error(t, err)
}

func TestExportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rows, err := Export(&buf, sample())
	require.NoError(t, err)
	require.Equal(t, 5, rows)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Equal(t, "Domain,Status Code,Message,Response Time (s),Category,Checked At", lines[0])
	require.Len(t, lines[1:], rows)

	for _, line := range lines[1:] {
		require.Len(t, strings.Split(line, ","), len(ExportHeader))
	}
	require.Equal(t, "alpha.com,200,OK,0.4,active,2025-04-02T08:30:00Z", lines[1])
	require.Equal(t, "gamma.net,503,Service Unavailable; try later,N/A,error,2025-04-02T08:30:00Z", lines[3])
	require.Equal(t, "omega.dev,ERROR,Connection Failed,N/A,Connection Error,2025-04-02T08:30:00Z", lines[5])
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)
	require.Equal(t, "website-status-report-2025-12-31.csv", ExportFilename(false, now))
	require.Equal(t, "filtered-website-status-2025-12-31.csv", ExportFilename(true, now))
}
