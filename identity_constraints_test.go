package xsdgraph

import "testing"

func TestIdentityConstraints(t *testing.T) {
	schema := parseSchema(t, `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns:ex="urn:company"
           targetNamespace="urn:company" elementFormDefault="qualified">
  <xs:element name="company">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="dept" maxOccurs="unbounded">
          <xs:complexType>
            <xs:attribute name="code" type="xs:string"/>
          </xs:complexType>
        </xs:element>
        <xs:element name="employee" minOccurs="0" maxOccurs="unbounded">
          <xs:complexType>
            <xs:sequence>
              <xs:element name="email" type="xs:string" minOccurs="0"/>
            </xs:sequence>
            <xs:attribute name="dept" type="xs:string"/>
          </xs:complexType>
        </xs:element>
      </xs:sequence>
    </xs:complexType>
    <xs:key name="deptKey">
      <xs:selector xpath="ex:dept"/>
      <xs:field xpath="@code"/>
    </xs:key>
    <xs:unique name="emailUnique">
      <xs:selector xpath=".//ex:employee"/>
      <xs:field xpath="ex:email"/>
    </xs:unique>
    <xs:keyref name="deptRef" refer="ex:deptKey">
      <xs:selector xpath="ex:employee"/>
      <xs:field xpath="@dept"/>
    </xs:keyref>
  </xs:element>
</xs:schema>`)

	runValidationCases(t, schema, []validationCase{
		{
			name: "constraints satisfied",
			xml: `<company xmlns="urn:company">
				<dept code="d1"/>
				<dept code="d2"/>
				<employee dept="d1"><email>a@example.com</email></employee>
				<employee dept="d2"><email>b@example.com</email></employee>
			</company>`,
		},
		{
			name: "duplicate key",
			xml: `<company xmlns="urn:company">
				<dept code="d1"/>
				<dept code="d1"/>
			</company>`,
			wantCodes: []string{"cvc-identity-constraint.4.1"},
		},
		{
			name: "key field missing",
			xml: `<company xmlns="urn:company">
				<dept code="d1"/>
				<dept/>
			</company>`,
			wantCodes: []string{"cvc-identity-constraint.4.2.1"},
		},
		{
			name: "duplicate unique value",
			xml: `<company xmlns="urn:company">
				<dept code="d1"/>
				<employee dept="d1"><email>a@example.com</email></employee>
				<employee dept="d1"><email>a@example.com</email></employee>
			</company>`,
			wantCodes: []string{"cvc-identity-constraint.4.1"},
		},
		{
			name: "unique ignores absent fields",
			xml: `<company xmlns="urn:company">
				<dept code="d1"/>
				<employee dept="d1"/>
				<employee dept="d1"/>
			</company>`,
		},
		{
			name: "keyref without matching key",
			xml: `<company xmlns="urn:company">
				<dept code="d1"/>
				<employee dept="d9"/>
			</company>`,
			wantCodes: []string{"cvc-identity-constraint.4.3"},
		},
		{
			name: "keyref with absent field",
			xml: `<company xmlns="urn:company">
				<dept code="d1"/>
				<employee/>
			</company>`,
		},
	})
}

func TestIdentityPathEvaluation(t *testing.T) {
	doc := decodeXML(t, `<root xmlns:p="urn:p">
		<group><item id="1"><name>a</name></item></group>
		<group><item id="2"><name>b</name></item><item id="3"/></group>
	</root>`)
	root := doc.DocumentElement()

	tests := []struct {
		selector string
		want     int
	}{
		{"group", 2},
		{"group/item", 3},
		{".//item", 3},
		{"p:group/p:item", 3},
		{"group/*", 3},
		{"group | group/item", 5},
		{"missing", 0},
	}
	for _, tt := range tests {
		if got := len(selectNodes(root, tt.selector)); got != tt.want {
			t.Errorf("selectNodes(%q) selected %d nodes, want %d", tt.selector, got, tt.want)
		}
	}

	items := selectNodes(root, ".//item")
	if v, ok := evaluateField(items[0], "@id"); !ok || v != "1" {
		t.Errorf("@id = %q, %v", v, ok)
	}
	if v, ok := evaluateField(items[1], "name"); !ok || v != "b" {
		t.Errorf("name = %q, %v", v, ok)
	}
	if _, ok := evaluateField(items[2], "name"); ok {
		t.Error("absent field reported as present")
	}
}
