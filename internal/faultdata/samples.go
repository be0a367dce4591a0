package faultdata

// SampleDocument is one of the canned maintenance references uploaded
// alongside the generated fault reports, so the knowledge base can
// answer procedural questions before any fleet data lands.
type SampleDocument struct {
	Filename string
	Content  string
}

// SampleDocuments returns the canned maintenance reference set.
func SampleDocuments() []SampleDocument {
	return []SampleDocument{
		{Filename: "maintenance_procedures.txt", Content: maintenanceProcedures},
		{Filename: "fault_diagnosis_guide.txt", Content: faultDiagnosisGuide},
		{Filename: "maintenance_best_practices.txt", Content: maintenanceBestPractices},
	}
}

const maintenanceProcedures = `PREVENTIVE MAINTENANCE PROCEDURES

Equipment Type: Industrial Pumps and Motors

DAILY INSPECTIONS:
- Check for unusual noises, vibrations, or overheating
- Verify proper lubrication levels
- Inspect for leaks or corrosion
- Monitor temperature and pressure readings
- Check electrical connections for tightness

WEEKLY MAINTENANCE:
- Lubricate bearings according to manufacturer specifications
- Clean equipment surfaces and remove debris
- Check belt tension and alignment
- Inspect coupling alignment
- Test emergency shutdown systems

MONTHLY PROCEDURES:
- Perform vibration analysis
- Check motor current and voltage readings
- Inspect and clean cooling systems
- Replace filters as needed
- Document all readings and observations

QUARTERLY MAINTENANCE:
- Comprehensive equipment inspection
- Replace worn components
- Calibrate sensors and instruments
- Update maintenance records
- Schedule major repairs if needed

FAULT INDICATORS:
- Bearing temperature above 180°F indicates potential failure
- Vibration levels exceeding 0.5 inches/second require investigation
- Motor current draw 10% above nameplate indicates problems
- Unusual noise patterns suggest mechanical wear

SAFETY PROCEDURES:
- Always follow lockout/tagout procedures
- Use proper personal protective equipment
- Ensure equipment is properly grounded
- Never bypass safety systems
`

const faultDiagnosisGuide = `EQUIPMENT FAULT DIAGNOSIS GUIDE

COMMON FAULT SYMPTOMS AND CAUSES:

EXCESSIVE VIBRATION:
- Misalignment of rotating equipment
- Unbalanced rotating components
- Worn or damaged bearings
- Loose mounting bolts
- Bent or damaged shafts

OVERHEATING:
- Insufficient lubrication
- Blocked cooling passages
- Excessive load conditions
- Poor ventilation
- Electrical problems in motors

UNUSUAL NOISES:
- Grinding sounds indicate bearing wear
- Squealing suggests belt problems
- Knocking indicates loose components
- Humming may indicate electrical issues

PERFORMANCE DEGRADATION:
- Reduced flow rates in pumps
- Decreased efficiency
- Higher energy consumption
- Frequent trips or shutdowns

DIAGNOSTIC PROCEDURES:
1. Visual inspection for obvious problems
2. Temperature measurements using infrared thermometry
3. Vibration analysis using accelerometers
4. Oil analysis for contamination and wear particles
5. Electrical testing for motor-driven equipment

PREDICTIVE MAINTENANCE INDICATORS:
- Trending temperature increases
- Gradual vibration level increases
- Oil analysis showing increasing wear particles
- Decreasing equipment efficiency over time

IMMEDIATE ACTION REQUIRED:
- Equipment temperature above 200°F
- Vibration levels above 1.0 inches/second
- Visible sparking or arcing
- Strong burning odors
- Excessive noise levels
`

const maintenanceBestPractices = `MAINTENANCE BEST PRACTICES

PLANNING AND SCHEDULING:
- Develop comprehensive maintenance schedules
- Use equipment history to optimize intervals
- Coordinate maintenance with production schedules
- Maintain adequate spare parts inventory
- Plan for seasonal maintenance requirements

CONDITION MONITORING:
- Implement vibration monitoring programs
- Use thermal imaging for early fault detection
- Perform regular oil analysis
- Monitor electrical parameters
- Track equipment performance trends

DOCUMENTATION:
- Maintain detailed maintenance records
- Document all repairs and modifications
- Track failure patterns and root causes
- Keep updated equipment drawings and manuals
- Record all safety incidents and near misses

TRAINING AND COMPETENCY:
- Ensure technicians are properly trained
- Provide ongoing education on new technologies
- Maintain certification requirements
- Cross-train personnel for flexibility
- Document training records

SPARE PARTS MANAGEMENT:
- Maintain critical spare parts inventory
- Use vendor-managed inventory when appropriate
- Implement proper storage conditions
- Track parts usage and lead times
- Establish emergency procurement procedures

SAFETY CONSIDERATIONS:
- Always follow safety procedures
- Use proper tools and equipment
- Maintain clean and organized work areas
- Report all safety hazards immediately
- Conduct regular safety training

CONTINUOUS IMPROVEMENT:
- Analyze failure data for trends
- Implement reliability-centered maintenance
- Use root cause analysis for major failures
- Benchmark against industry standards
- Regularly review and update procedures
`
