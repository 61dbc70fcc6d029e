package salesforce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	args := m.Called(ctx, soql, out)
	if fn, ok := args.Get(0).(func(any)); ok {
		fn(out)
		return nil
	}
	return args.Error(0)
}

func (m *mockClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	args := m.Called(ctx, sObjectName, record)
	return args.String(0), args.Error(1)
}

func (m *mockClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	return m.Called(ctx, sObjectName, id, fields).Error(0)
}

func TestCampaignLeads(t *testing.T) {
	m := &mockClient{}
	m.On("Query", mock.Anything, mock.MatchedBy(func(soql string) bool {
		return assert.Contains(t, soql, "FROM Lead WHERE Id IN (SELECT LeadId FROM CampaignMember WHERE CampaignId = '701\\'x')") &&
			assert.Contains(t, soql, "LinkedIn_URL__c")
	}), mock.Anything).Return(func(out any) {
		*(out.(*[]Lead)) = []Lead{{ID: "00Q1"}}
	})

	leads, err := CampaignLeads(context.Background(), m, "701'x")
	require.NoError(t, err)
	assert.Equal(t, []Lead{{ID: "00Q1"}}, leads)

	_, err = CampaignLeads(context.Background(), m, "")
	assert.Error(t, err)
}

func TestCreateLead(t *testing.T) {
	m := &mockClient{}
	fields := map[string]any{FieldLastName: "Doe", FieldCompany: "Acme"}
	m.On("InsertOne", mock.Anything, "Lead", fields).Return("00Qnew", nil)

	id, err := CreateLead(context.Background(), m, fields)
	require.NoError(t, err)
	assert.Equal(t, "00Qnew", id)

	_, err = CreateLead(context.Background(), m, map[string]any{FieldLastName: "Doe"})
	assert.ErrorContains(t, err, "Company is required")
}

func TestUpdateLead(t *testing.T) {
	m := &mockClient{}
	m.On("UpdateOne", mock.Anything, "Lead", "00Q1", map[string]any{FieldTitle: "CEO"}).Return(nil)

	require.NoError(t, UpdateLead(context.Background(), m, "00Q1", map[string]any{FieldTitle: "CEO"}))
	assert.Error(t, UpdateLead(context.Background(), m, "", map[string]any{FieldTitle: "CEO"}))
	assert.Error(t, UpdateLead(context.Background(), m, "00Q1", nil))
}

func TestAddToCampaign(t *testing.T) {
	m := &mockClient{}
	m.On("InsertOne", mock.Anything, "CampaignMember", map[string]any{"CampaignId": "701", "LeadId": "00Q1"}).Return("00v1", nil)
	require.NoError(t, AddToCampaign(context.Background(), m, "701", "00Q1"))
	m.AssertExpectations(t)
}

func TestLeadFields(t *testing.T) {
	l := Lead{LastName: "Doe", Audience: "Other"}
	f := l.Fields()
	assert.Equal(t, "Doe", f[FieldLastName])
	assert.Equal(t, "Other", f[FieldAudience])
	assert.Len(t, f, 9)
}

func TestEscapeSoql(t *testing.T) {
	assert.Equal(t, `O\'Brien`, escapeSoql("O'Brien"))
}
